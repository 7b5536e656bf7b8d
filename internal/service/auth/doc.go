// Package auth issues and validates the HS256 bearer tokens that guard the
// queue API. Tokens carry only the operator name as subject; there is no
// user store behind them.
package auth
