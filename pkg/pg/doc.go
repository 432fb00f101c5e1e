// Package pg wires the PostgreSQL side of the engine: a pgxpool connection
// with startup retry, goose schema migrations, and a readiness probe for
// the health endpoint.
package pg
