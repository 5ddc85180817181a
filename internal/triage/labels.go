package triage

import (
	"fmt"
	"strings"
)

type MainCategory int

const (
	MainUnknown MainCategory = iota
	MainGarbage
	MainRoad
	MainChild
)

// MainCategories is the main head's output order.
var MainCategories = []MainCategory{MainGarbage, MainRoad, MainChild}

var mainNames = map[MainCategory]string{
	MainUnknown: "unknown",
	MainGarbage: "garbage",
	MainRoad:    "road",
	MainChild:   "child",
}

func (m MainCategory) String() string {
	if name, ok := mainNames[m]; ok {
		return name
	}
	return fmt.Sprintf("main(%d)", int(m))
}

func (m MainCategory) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MainCategory) UnmarshalText(text []byte) error {
	parsed, err := ParseMain(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func ParseMain(s string) (MainCategory, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range mainNames {
		if m != MainUnknown && n == name {
			return m, nil
		}
	}
	return MainUnknown, fmt.Errorf("unknown main category %q", s)
}

type SeverityClass int

const (
	SeverityUnknown SeverityClass = iota
	LowGarbage
	HeavyGarbage
	LowDamageRoads
	HighDamageRoads
	NormalChild
	ChildLabour
)

// SeverityClasses is the severity head's output order.
var SeverityClasses = []SeverityClass{LowGarbage, HeavyGarbage, LowDamageRoads, HighDamageRoads, NormalChild, ChildLabour}

var severityNames = map[SeverityClass]string{
	SeverityUnknown: "unknown",
	LowGarbage:      "low_garbage",
	HeavyGarbage:    "heavy_garbage",
	LowDamageRoads:  "low_damage_roads",
	HighDamageRoads: "high_damage_roads",
	NormalChild:     "normal_child",
	ChildLabour:     "child_labour",
}

func (s SeverityClass) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

func (s SeverityClass) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SeverityClass) UnmarshalText(text []byte) error {
	*s = ParseSeverity(string(text))
	return nil
}

// Category is the main category a severity class belongs to.
func (s SeverityClass) Category() MainCategory {
	switch s {
	case LowGarbage, HeavyGarbage:
		return MainGarbage
	case LowDamageRoads, HighDamageRoads:
		return MainRoad
	case NormalChild, ChildLabour:
		return MainChild
	}
	return MainUnknown
}

// ParseSeverity is strict: anything but an exact class name is SeverityUnknown.
func ParseSeverity(s string) SeverityClass {
	name := strings.ToLower(strings.TrimSpace(s))
	for c, n := range severityNames {
		if c != SeverityUnknown && n == name {
			return c
		}
	}
	return SeverityUnknown
}

// MatchSeverity binds a free-form class name, as found in exported model
// metadata, to a severity class. Families are tried in the order garbage,
// roads, child; "heavy", "high" and "labour" pick the severe member.
func MatchSeverity(name string) SeverityClass {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "garbage"):
		if strings.Contains(n, "heavy") {
			return HeavyGarbage
		}
		return LowGarbage
	case strings.Contains(n, "roads"):
		if strings.Contains(n, "high") {
			return HighDamageRoads
		}
		return LowDamageRoads
	case strings.Contains(n, "child"):
		if strings.Contains(n, "labour") {
			return ChildLabour
		}
		return NormalChild
	}
	return SeverityUnknown
}

// Labels maps head output indexes to enum values.
type Labels struct {
	Main     []MainCategory
	Severity []SeverityClass
}

func DefaultLabels() Labels {
	return Labels{
		Main:     append([]MainCategory(nil), MainCategories...),
		Severity: append([]SeverityClass(nil), SeverityClasses...),
	}
}

// BindLabels builds Labels from the class names of a model export. Each
// head must name every class of its enum exactly once.
func BindLabels(mainNames, severityNames []string) (Labels, error) {
	var labels Labels

	seenMain := make(map[MainCategory]bool)
	for _, name := range mainNames {
		m, err := ParseMain(name)
		if err != nil {
			return Labels{}, err
		}
		if seenMain[m] {
			return Labels{}, fmt.Errorf("main category %q listed twice", name)
		}
		seenMain[m] = true
		labels.Main = append(labels.Main, m)
	}
	if len(labels.Main) != len(MainCategories) {
		return Labels{}, fmt.Errorf("main head has %d classes, expected %d", len(labels.Main), len(MainCategories))
	}

	seenSeverity := make(map[SeverityClass]bool)
	for _, name := range severityNames {
		s := MatchSeverity(name)
		if s == SeverityUnknown {
			return Labels{}, fmt.Errorf("severity class %q matches no known class", name)
		}
		if seenSeverity[s] {
			return Labels{}, fmt.Errorf("severity class %q binds to %s twice", name, s)
		}
		seenSeverity[s] = true
		labels.Severity = append(labels.Severity, s)
	}
	if len(labels.Severity) != len(SeverityClasses) {
		return Labels{}, fmt.Errorf("severity head has %d classes, expected %d", len(labels.Severity), len(SeverityClasses))
	}

	return labels, nil
}
