package router

import (
	"html"
	"strings"
)

// helpText renders help for Telegram's HTML parse mode.
func (r *Router) helpText(args []string) string {
	r.mu.RLock()
	list := r.list
	byName := r.cmds
	r.mu.RUnlock()

	if len(args) > 0 {
		name := strings.ToLower(strings.TrimPrefix(args[0], "/"))
		c, ok := byName[name]
		if !ok {
			return "❓ <b>Unknown command</b>\nType <code>/help</code> to see what I can do."
		}
		return commandHelp(*c)
	}

	lines := []string{"📚 <b>Commands</b>", "Type <code>/help &lt;command&gt;</code> for details.", ""}
	for _, c := range list {
		line := "/" + html.EscapeString(c.Name)
		if c.Description != "" {
			line += " - " + html.EscapeString(c.Description)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func commandHelp(c Command) string {
	var b strings.Builder
	b.WriteString("<b>/" + html.EscapeString(c.Name) + "</b>")
	if c.Description != "" {
		b.WriteString("\n" + html.EscapeString(c.Description))
	}
	if c.Usage != "" {
		b.WriteString("\n\nUsage: <code>" + html.EscapeString(c.Usage) + "</code>")
	}
	if len(c.Aliases) > 0 {
		as := make([]string, 0, len(c.Aliases))
		for _, a := range c.Aliases {
			as = append(as, "/"+html.EscapeString(a))
		}
		b.WriteString("\nAliases: " + strings.Join(as, ", "))
	}
	return b.String()
}
