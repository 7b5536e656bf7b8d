// Package testdb opens migrated databases for tests: a throwaway SQLite file
// per test, or the PostgreSQL database named by CHAPTERQ_TEST_DATABASE_URL.
package testdb
