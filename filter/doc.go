// Package filter provides a rule-driven line filter that can be installed as
// an ambient sink. Each complete line written to a Writer is evaluated against
// a boolean rule (expr, CEL or, with the js_eval build tag, JavaScript) and
// forwarded to the destination only when the rule holds.
package filter
