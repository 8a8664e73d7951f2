package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var levelSymbol []byte

func init() {
	levelSymbol = make([]byte, len(logrus.AllLevels)+1)
	for _, level := range logrus.AllLevels {
		levelSymbol[level] = strings.ToUpper(level.String()[:1])[0]
	}
}

// CompactText prints one laconic line per entry, like
// [12:34:56 I] Generated assets	assets=11246 elapsed=1.2s
type CompactText struct {
	TimestampFormat string
}

// Format implements logrus.Formatter.
func (f *CompactText) Format(entry *logrus.Entry) ([]byte, error) {
	timestamp := time.RFC3339
	if f.TimestampFormat != "" {
		timestamp = f.TimestampFormat
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s %c] %s", entry.Time.Format(timestamp), levelSymbol[entry.Level], entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, "\t%s=%v", key, entry.Data[key])
	}

	b.WriteByte('\n')
	return []byte(b.String()), nil
}
