// Package integration contains the Integration Hub bounded context.
// The hub routes messages between named connectors (ERP systems, e-commerce
// platforms, EDI and fiscal gateways, file drops) and protects each of them
// with a fixed-window rate limit and a circuit breaker.
//
// Key concepts:
//   - Connector: an external endpoint with rate-limit, circuit and health state
//   - IntegrationMessage: one message flowing source -> canonical -> target
//   - Transformation: declarative field-mapping rules between connectors
//   - DeadLetterEntry: a terminally failed message kept for inspection and reprocessing
//   - RetryPolicy: exponential backoff with jitter
//
// Design Pattern: Ports & Adapters
//   - Ports (repositories, DeliveryGateway, IdempotencyCache) are defined here
//   - Adapters (GORM, Redis, HTTP/Kafka/S3 transports) live in the infrastructure layer
package integration
