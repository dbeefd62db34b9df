package database

import _ "embed"

// Schema is the DDL applied by the migrate command. Statements are idempotent.
//
//go:embed schema.sql
var Schema string
