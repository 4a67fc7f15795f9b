// Package tgui holds small Telegram formatting helpers: MarkdownV2
// escaping and length clamping for Telegram's per-field limits.
package tgui
