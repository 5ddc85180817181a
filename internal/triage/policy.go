package triage

import (
	"encoding/json"
	"fmt"
)

type EmergencyLevel string

const (
	EmergencyHigh        EmergencyLevel = "HIGH"
	EmergencyMedium      EmergencyLevel = "MEDIUM"
	EmergencyNoAction    EmergencyLevel = "NO_ACTION"
	EmergencyManualCheck EmergencyLevel = "MANUAL_CHECK"
)

// Display is the label shown to citizens.
func (e EmergencyLevel) Display() string {
	switch e {
	case EmergencyHigh:
		return "🔴 HIGH EMERGENCY"
	case EmergencyMedium:
		return "🟡 MEDIUM PRIORITY"
	case EmergencyNoAction:
		return "🟢 NO ACTION REQUIRED"
	}
	return "⚪ Check Manually"
}

// Timeline is the promised response time. TimelineNone encodes as JSON null.
type Timeline string

const (
	TimelineNone      Timeline = ""
	TimelineFewHours  Timeline = "few hours"
	TimelineWithinDay Timeline = "within a day"
)

func (t Timeline) MarshalJSON() ([]byte, error) {
	if t == TimelineNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

func (t *Timeline) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = TimelineNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = Timeline(s)
	return nil
}

func (t Timeline) phrase() string {
	if t == TimelineFewHours {
		return "within a few hours"
	}
	return string(t)
}

const (
	IssueGarbage = "Garbage/Waste"
	IssueRoad    = "Road Damage"
	IssueChild   = "Child Case"
	IssueUnknown = "Unknown"
)

const (
	DepartmentSanitation   = "Municipal Corporation & Sanitation Department"
	DepartmentPublicWorks  = "PWD, NHAI, Public Works Department"
	DepartmentChildWelfare = "Child Welfare Committee / DCPU"
	DepartmentNone         = "None"
	DepartmentUnknown      = "Unknown"
)

// ConfidenceMaxHeadScore tags confidence values computed as the largest
// score of either head.
const ConfidenceMaxHeadScore = "max_head_score"

const (
	feedbackChildLabour = "⚠️ The uploaded image indicates possible child labour.\n" +
		"An urgent alert has been sent to the Labour Department / Childline 1098."
	feedbackNormalChild = "✅ The child in the photo is not a Child Labour.\n" +
		"No action required. Thank you for using SmartSeva!"
	feedbackThanks = "✅ Thanks for using SmartSeva!\n" +
		"They will contact you via Phone or Mail"
)

type Result struct {
	IssueType         string         `json:"issue_type"`
	PredictedClass    SeverityClass  `json:"predicted_class"`
	MainCategory      MainCategory   `json:"main_category"`
	ConfidencePercent float64        `json:"confidence_percent"`
	ConfidenceKind    string         `json:"confidence_kind"`
	EmergencyLevel    EmergencyLevel `json:"emergency_level"`
	Department        string         `json:"department"`
	Timeline          Timeline       `json:"timeline"`
	Feedback          string         `json:"feedback"`
	Mismatch          bool           `json:"mismatch"`
}

func (r Result) ConfidenceText() string {
	return fmt.Sprintf("%.2f%%", r.ConfidencePercent)
}

// Triage routes a resolved severity class to a department, urgency and
// citizen-facing message. The main category is carried through untouched.
func Triage(severity SeverityClass, confidence float64, main MainCategory) Result {
	r := Result{
		PredictedClass:    severity,
		MainCategory:      main,
		ConfidencePercent: confidence,
		ConfidenceKind:    ConfidenceMaxHeadScore,
	}

	switch severity {
	case LowGarbage, HeavyGarbage:
		r.IssueType = IssueGarbage
		r.Department = DepartmentSanitation
		if severity == HeavyGarbage {
			r.EmergencyLevel, r.Timeline = EmergencyHigh, TimelineFewHours
		} else {
			r.EmergencyLevel, r.Timeline = EmergencyMedium, TimelineWithinDay
		}
	case LowDamageRoads, HighDamageRoads:
		r.IssueType = IssueRoad
		r.Department = DepartmentPublicWorks
		if severity == HighDamageRoads {
			r.EmergencyLevel, r.Timeline = EmergencyHigh, TimelineFewHours
		} else {
			r.EmergencyLevel, r.Timeline = EmergencyMedium, TimelineWithinDay
		}
	case ChildLabour:
		r.IssueType = IssueChild
		r.Department = DepartmentChildWelfare
		r.EmergencyLevel, r.Timeline = EmergencyHigh, TimelineFewHours
	case NormalChild:
		r.IssueType = IssueChild
		r.Department = DepartmentNone
		r.EmergencyLevel = EmergencyNoAction
	default:
		r.IssueType = IssueUnknown
		r.Department = DepartmentUnknown
		r.EmergencyLevel = EmergencyManualCheck
	}

	r.Feedback = feedback(severity, r.Timeline)
	return r
}

// TriageLabel triages a free-form severity label. The label is matched by
// substring, garbage before roads before child, so "garbage_on_roads" is a
// garbage complaint.
func TriageLabel(label string, confidence float64, main MainCategory) Result {
	return Triage(MatchSeverity(label), confidence, main)
}

// feedback is chosen on its own, not from the routing branch in Triage.
func feedback(severity SeverityClass, timeline Timeline) string {
	switch severity {
	case ChildLabour:
		return feedbackChildLabour
	case NormalChild:
		return feedbackNormalChild
	}
	if timeline == TimelineNone {
		return feedbackThanks + "."
	}
	return fmt.Sprintf("%s %s.", feedbackThanks, timeline.phrase())
}
