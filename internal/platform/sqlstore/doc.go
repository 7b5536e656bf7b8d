// Package sqlstore holds the database/sql implementation of the store
// interfaces shared by the postgres and sqlite backends. A Dialect supplies the
// bits that differ between them: parameter placeholders and error mapping.
package sqlstore
