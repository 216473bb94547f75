package tui

import (
	"strconv"

	"pkt.systems/ecrituria/schema"
)

type rgb struct {
	r int
	g int
	b int
}

// Theme holds the terminal colours of the shell.
type Theme struct {
	Name      schema.ThemeName
	Plain     bool
	InfoFG    rgb
	SuccessFG rgb
	ErrorFG   rgb
	WarningFG rgb
	MetaFG    rgb
	UserFG    rgb
	HeadingFG rgb
	CodeFG    rgb
	MarkFG    rgb
	MarkBG    rgb
	BarFG     rgb
}

const (
	ansiReset   = "\x1b[0m"
	ansiBold    = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiItalic  = "\x1b[3m"
	ansiReverse = "\x1b[7m"
)

var themes = map[schema.ThemeName]Theme{
	"parchment": {
		Name:      "parchment",
		InfoFG:    rgb{r: 196, g: 170, b: 120},
		SuccessFG: rgb{r: 143, g: 188, b: 120},
		ErrorFG:   rgb{r: 224, g: 108, b: 92},
		WarningFG: rgb{r: 232, g: 180, b: 80},
		MetaFG:    rgb{r: 150, g: 140, b: 120},
		UserFG:    rgb{r: 240, g: 230, b: 210},
		HeadingFG: rgb{r: 214, g: 160, b: 96},
		CodeFG:    rgb{r: 150, g: 190, b: 200},
		MarkFG:    rgb{r: 40, g: 32, b: 20},
		MarkBG:    rgb{r: 250, g: 215, b: 120},
		BarFG:     rgb{r: 214, g: 160, b: 96},
	},
	"gruvbox": {
		Name:      "gruvbox",
		InfoFG:    rgb{r: 131, g: 165, b: 152},
		SuccessFG: rgb{r: 184, g: 187, b: 38},
		ErrorFG:   rgb{r: 251, g: 73, b: 52},
		WarningFG: rgb{r: 250, g: 189, b: 47},
		MetaFG:    rgb{r: 146, g: 131, b: 116},
		UserFG:    rgb{r: 235, g: 219, b: 178},
		HeadingFG: rgb{r: 214, g: 93, b: 14},
		CodeFG:    rgb{r: 250, g: 189, b: 47},
		MarkFG:    rgb{r: 40, g: 40, b: 40},
		MarkBG:    rgb{r: 250, g: 189, b: 47},
		BarFG:     rgb{r: 131, g: 165, b: 152},
	},
	"tokyo-midnight": {
		Name:      "tokyo-midnight",
		InfoFG:    rgb{r: 122, g: 162, b: 247},
		SuccessFG: rgb{r: 158, g: 206, b: 106},
		ErrorFG:   rgb{r: 247, g: 118, b: 142},
		WarningFG: rgb{r: 224, g: 175, b: 104},
		MetaFG:    rgb{r: 127, g: 133, b: 163},
		UserFG:    rgb{r: 192, g: 202, b: 245},
		HeadingFG: rgb{r: 187, g: 154, b: 247},
		CodeFG:    rgb{r: 158, g: 206, b: 106},
		MarkFG:    rgb{r: 26, g: 27, b: 38},
		MarkBG:    rgb{r: 224, g: 175, b: 104},
		BarFG:     rgb{r: 122, g: 162, b: 247},
	},
	"plain": {
		Name:  "plain",
		Plain: true,
	},
}

// ThemeFor returns the named theme, falling back to the default.
func ThemeFor(name schema.ThemeName) Theme {
	if normalized, ok := schema.NormalizeThemeName(string(name)); ok {
		name = normalized
	}
	if theme, ok := themes[name]; ok {
		return theme
	}
	return themes[schema.DefaultTheme]
}

func (t Theme) fg(c rgb) string {
	if t.Plain {
		return ""
	}
	return "\x1b[38;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}

func (t Theme) bg(c rgb) string {
	if t.Plain {
		return ""
	}
	return "\x1b[48;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}

// style wraps text in the given codes. The plain theme drops every
// escape sequence.
func (t Theme) style(text string, codes ...string) string {
	if t.Plain || text == "" {
		return text
	}
	prefix := ""
	for _, code := range codes {
		prefix += code
	}
	if prefix == "" {
		return text
	}
	return prefix + text + ansiReset
}

func (t Theme) statusFG(mode schema.StatusMode) rgb {
	switch mode {
	case schema.StatusSuccess:
		return t.SuccessFG
	case schema.StatusError:
		return t.ErrorFG
	case schema.StatusWarning:
		return t.WarningFG
	default:
		return t.InfoFG
	}
}
