package reconcile

import "regexp"

const (
	// DefaultRepairWindow is how many bytes either side of a parse error the
	// targeted comma insertion looks at.
	DefaultRepairWindow = 150

	// NoHint marks a repair without a known error offset.
	NoHint = -1
)

// Repair rule names, used as metric labels.
const (
	RuleTrailingComma = "trailing_comma"
	RuleWindowComma   = "window_comma"
	RuleGlobalComma   = "global_comma"
)

var (
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	adjacentValue = regexp.MustCompile(`([}\]"])(\s+)([\[{"])`)
	objectThenKey = regexp.MustCompile(`\}(\s*")`)
	arrayThenObj  = regexp.MustCompile(`\](\s*\{)`)
)

// RepairReport records what a repair changed. Window bounds are only set
// when a hint was given.
type RepairReport struct {
	Hinted                bool `json:"hinted"`
	WindowStart           int  `json:"windowStart"`
	WindowEnd             int  `json:"windowEnd"`
	TrailingCommasRemoved int  `json:"trailingCommasRemoved"`
	WindowCommasInserted  int  `json:"windowCommasInserted"`
	GlobalCommasInserted  int  `json:"globalCommasInserted"`
}

// Changed reports whether any rule matched.
func (r RepairReport) Changed() bool {
	return r.TrailingCommasRemoved+r.WindowCommasInserted+r.GlobalCommasInserted > 0
}

// Repairer applies comma-only structural fixes. It only ever removes a comma
// before a closing bracket or inserts one between adjacent values.
type Repairer struct {
	Window int
}

// Repair runs the rules with the default window.
func Repair(text string, errorOffset int) (string, RepairReport) {
	return Repairer{Window: DefaultRepairWindow}.Repair(text, errorOffset)
}

// Repair removes trailing commas, inserts missing commas between adjacent
// values near errorOffset, then inserts commas after a closing brace followed
// by a key and after a closing bracket followed by an object, across the
// whole text. errorOffset < 0 skips the targeted step.
func (r Repairer) Repair(text string, errorOffset int) (string, RepairReport) {
	window := r.Window
	if window <= 0 {
		window = DefaultRepairWindow
	}

	var report RepairReport

	report.TrailingCommasRemoved = len(trailingComma.FindAllStringIndex(text, -1))
	fixed := trailingComma.ReplaceAllString(text, "${1}")

	// The hint refers to the text before trailing commas were dropped; the
	// shift is at most the number removed and the window absorbs it.
	if errorOffset >= 0 {
		start := clamp(errorOffset-window, 0, len(fixed))
		end := clamp(errorOffset+window, start, len(fixed))
		region := fixed[start:end]

		report.Hinted = true
		report.WindowStart = start
		report.WindowEnd = end
		report.WindowCommasInserted = len(adjacentValue.FindAllStringIndex(region, -1))

		fixed = fixed[:start] + adjacentValue.ReplaceAllString(region, "${1},${2}${3}") + fixed[end:]
	}

	report.GlobalCommasInserted = len(objectThenKey.FindAllStringIndex(fixed, -1))
	fixed = objectThenKey.ReplaceAllString(fixed, "},${1}")

	report.GlobalCommasInserted += len(arrayThenObj.FindAllStringIndex(fixed, -1))
	fixed = arrayThenObj.ReplaceAllString(fixed, "],${1}")

	return fixed, report
}

func clamp(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
