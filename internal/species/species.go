// Package species holds the fixed set of myna labels the classifier was
// trained on and the descriptive record shown next to each prediction.
package species

import "fmt"

// Label identifies one of the trained classes. Its numeric value is the
// class index the model was trained with.
type Label int

const (
	JavanMyna Label = iota
	CommonMyna
	GreatMyna
)

// all is the training order. Metadata, dataset manifests and the predictor
// are all derived from it.
var all = []Label{JavanMyna, CommonMyna, GreatMyna}

type Record struct {
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name_en"`
	Description    string `json:"description"`
	Range          string `json:"range"`
	Behavior       string `json:"behavior"`
}

// All returns the labels in class index order.
func All() []Label {
	out := make([]Label, len(all))
	copy(out, all)
	return out
}

// Names returns the label names in class index order.
func Names() []string {
	names := make([]string, len(all))
	for i, l := range all {
		names[i] = l.String()
	}
	return names
}

func (l Label) String() string {
	switch l {
	case JavanMyna:
		return "白尾八哥"
	case CommonMyna:
		return "家八哥"
	case GreatMyna:
		return "林八哥"
	}
	return "unknown"
}

func (l Label) Valid() bool {
	return l >= JavanMyna && l <= GreatMyna
}

func (l Label) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("label %d is outside the trained set", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Label) UnmarshalText(text []byte) error {
	parsed, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("unknown label %q", text)
	}
	*l = parsed
	return nil
}

// Parse maps a label name back to its Label.
func Parse(name string) (Label, bool) {
	for _, l := range all {
		if l.String() == name {
			return l, true
		}
	}
	return 0, false
}

// Lookup returns the record for l. The second result is false only for a
// Label outside the trained set.
func Lookup(l Label) (Record, bool) {
	switch l {
	case JavanMyna:
		return Record{
			ScientificName: "Acridotheres javanicus",
			CommonName:     "Javan Myna",
			Description:    "全身大致為黑褐色，尾下覆羽白色，飛行時可見白色尾端。",
			Range:          "原產於爪哇，台灣為外來種，主要分佈在西部平地。",
			Behavior:       "群棲性強，常見於都市、農田環境。",
		}, true
	case CommonMyna:
		return Record{
			ScientificName: "Acridotheres tristis",
			CommonName:     "Common Myna",
			Description:    "頭至胸部黑色，腹部褐色，眼周裸皮黃色，飛行時翼有白斑。",
			Range:          "原產於南亞，台灣為外來種，廣泛分佈於平地至低海拔。",
			Behavior:       "適應力強，常見於都市、公園、農田。",
		}, true
	case GreatMyna:
		return Record{
			ScientificName: "Acridotheres grandis",
			CommonName:     "Great Myna",
			Description:    "體型較大，全身黑色，頭部有羽冠，腳黃色。",
			Range:          "原產於中國南方，台灣為外來種，主要在西部平地。",
			Behavior:       "喜棲息於樹林、農田，群棲性。",
		}, true
	}
	return Record{}, false
}

// LookupName is Lookup keyed by label name.
func LookupName(name string) (Record, bool) {
	l, ok := Parse(name)
	if !ok {
		return Record{}, false
	}
	return Lookup(l)
}
