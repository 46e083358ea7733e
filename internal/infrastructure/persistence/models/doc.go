// Package models contains the GORM persistence models of the integration hub.
// Domain entities stay free of ORM tags; each model converts to and from its
// entity with ToDomain and FromDomain. JSON columns use gorm.io/datatypes so
// the same models run on PostgreSQL (jsonb) and SQLite (json).
package models
