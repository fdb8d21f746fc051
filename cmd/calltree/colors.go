package main

import "github.com/fatih/color"

var (
	headerClr = color.New(color.FgGreen)
	itemClr   = color.New(color.Bold)

	categoryClrs = map[string]*color.Color{
		"yellow":    color.New(color.FgYellow),
		"orange":    color.New(color.FgHiRed),
		"red":       color.New(color.FgRed),
		"blue":      color.New(color.FgBlue),
		"lightblue": color.New(color.FgHiBlue),
		"green":     color.New(color.FgGreen),
		"purple":    color.New(color.FgMagenta),
		"grey":      color.New(color.FgHiBlack),
	}
	plainClr = color.New()
)

// categoryClr maps a category color name to a terminal color.
func categoryClr(name string) *color.Color {
	if c, ok := categoryClrs[name]; ok {
		return c
	}
	return plainClr
}
