package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35
	colorBold    = 1
)

// levelLabels maps zerolog level names to their console label and colour
var levelLabels = map[string]struct {
	label string
	color int
}{
	"trace": {"TRC", colorMagenta},
	"debug": {"DBG", colorYellow},
	"info":  {"INF", colorGreen},
	"warn":  {"WRN", colorRed},
	"error": {"ERR", colorRed},
	"fatal": {"FTL", colorRed},
	"panic": {"PNC", colorRed},
}

func colorize(s any, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

// New creates a stderr logger for env at the given level. Development
// environments get coloured console output, everything else JSON.
// An unparseable level falls back to info.
func New(env, level string) zerolog.Logger {
	var l zerolog.Logger
	if IsDevelopment(env) {
		l = NewDevelopment(os.Stderr)
	} else {
		l = NewProduction(os.Stderr)
	}
	return l.Level(ParseLevel(level))
}

// IsDevelopment reports whether env selects the console logger
func IsDevelopment(env string) bool {
	switch strings.ToLower(env) {
	case "", "dev", "development":
		return true
	}
	return false
}

// ParseLevel parses a zerolog level name, defaulting to info
func ParseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func formatLevel(i any) string {
	name, ok := i.(string)
	if !ok {
		name = fmt.Sprint(i)
	}
	if l, ok := levelLabels[name]; ok {
		return colorize(l.label, l.color)
	}
	upper := strings.ToUpper(name)
	if len(upper) > 3 {
		upper = upper[:3]
	}
	return colorize(upper, colorBold)
}

// NewDevelopment creates a console logger with colours
func NewDevelopment(w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:         w,
		TimeFormat:  "2006-01-02 15:04:05",
		FormatLevel: formatLevel,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// NewProduction creates a JSON logger with UNIX timestamps
func NewProduction(w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(w).With().Timestamp().Logger()
}
