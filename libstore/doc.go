// Package libstore defines the persistent records of the library backend
// and the contracts a storage engine has to fulfill: record types, store
// level errors, pagination, and the pluggable observability interfaces.
//
// The Postgres implementation lives in libstore/postgresengine; adapters
// for OpenTelemetry-based observability live in libstore/oteladapters.
package libstore
