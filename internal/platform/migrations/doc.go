// Package migrations embeds the SQL schema migrations and runs them with goose
// against either supported database driver.
package migrations
