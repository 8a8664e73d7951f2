package ml

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ClassMetrics are precision, recall, F1 and support of one class or average
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// Report is a classification report over the labels seen in truth or predictions
type Report struct {
	Labels      []string
	PerClass    []ClassMetrics
	Accuracy    float64
	MacroAvg    ClassMetrics
	WeightedAvg ClassMetrics
}

// ClassificationReport scores predictions against truth. Undefined ratios score 0.
func ClassificationReport(yTrue, yPred []int, classes []string) (*Report, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("report: %d labels but %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("report: no samples")
	}

	seen := make(map[int]bool)
	for i := range yTrue {
		seen[yTrue[i]] = true
		seen[yPred[i]] = true
	}
	labels := make([]int, 0, len(seen))
	for c := range seen {
		labels = append(labels, c)
	}
	sort.Ints(labels)

	cm := ConfusionMatrix(yTrue, yPred, len(classes))
	r := &Report{}
	correct := 0
	for c := range classes {
		correct += cm[c][c]
	}
	r.Accuracy = float64(correct) / float64(len(yTrue))

	total := 0
	for _, c := range labels {
		tp := cm[c][c]
		predicted, actual := 0, 0
		for k := range classes {
			predicted += cm[k][c]
			actual += cm[c][k]
		}
		m := ClassMetrics{
			Precision: ratio(tp, predicted),
			Recall:    ratio(tp, actual),
			Support:   actual,
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Labels = append(r.Labels, classes[c])
		r.PerClass = append(r.PerClass, m)
		total += actual
	}

	n := float64(len(labels))
	for _, m := range r.PerClass {
		r.MacroAvg.Precision += m.Precision / n
		r.MacroAvg.Recall += m.Recall / n
		r.MacroAvg.F1 += m.F1 / n
		if total > 0 {
			w := float64(m.Support) / float64(total)
			r.WeightedAvg.Precision += m.Precision * w
			r.WeightedAvg.Recall += m.Recall * w
			r.WeightedAvg.F1 += m.F1 * w
		}
	}
	r.MacroAvg.Support = total
	r.WeightedAvg.Support = total
	return r, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// ConfusionMatrix counts [true][predicted] pairs
func ConfusionMatrix(yTrue, yPred []int, nClasses int) [][]int {
	cm := make([][]int, nClasses)
	for i := range cm {
		cm[i] = make([]int, nClasses)
	}
	for i := range yTrue {
		cm[yTrue[i]][yPred[i]]++
	}
	return cm
}

// Class returns the metrics of one label
func (r *Report) Class(label string) (ClassMetrics, bool) {
	for i, l := range r.Labels {
		if l == label {
			return r.PerClass[i], true
		}
	}
	return ClassMetrics{}, false
}

// MarshalJSON writes one key per label plus "accuracy", "macro avg" and "weighted avg"
func (r *Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Labels)+3)
	for i, l := range r.Labels {
		out[l] = r.PerClass[i]
	}
	out["accuracy"] = r.Accuracy
	out["macro avg"] = r.MacroAvg
	out["weighted avg"] = r.WeightedAvg
	return json.Marshal(out)
}

// UnmarshalJSON reads the layout MarshalJSON writes
func (r *Report) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Report{}
	var labels []string
	for k, v := range raw {
		switch k {
		case "accuracy":
			if err := json.Unmarshal(v, &r.Accuracy); err != nil {
				return fmt.Errorf("accuracy: %w", err)
			}
		case "macro avg":
			if err := json.Unmarshal(v, &r.MacroAvg); err != nil {
				return fmt.Errorf("macro avg: %w", err)
			}
		case "weighted avg":
			if err := json.Unmarshal(v, &r.WeightedAvg); err != nil {
				return fmt.Errorf("weighted avg: %w", err)
			}
		default:
			labels = append(labels, k)
		}
	}
	sortLabels(labels)
	for _, l := range labels {
		var m ClassMetrics
		if err := json.Unmarshal(raw[l], &m); err != nil {
			return fmt.Errorf("class %s: %w", l, err)
		}
		r.Labels = append(r.Labels, l)
		r.PerClass = append(r.PerClass, m)
	}
	return nil
}

// String renders the report as an aligned text table
func (r *Report) String() string {
	const head = "weighted avg"
	width := len(head)
	for _, l := range r.Labels {
		if len(l) > width {
			width = len(l)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for i, l := range r.Labels {
		m := r.PerClass[i]
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, l, m.Precision, m.Recall, m.F1, m.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.MacroAvg.Support)
	for _, row := range []struct {
		name string
		m    ClassMetrics
	}{{"macro avg", r.MacroAvg}, {head, r.WeightedAvg}} {
		fmt.Fprintf(&b, "%*s %9.2f %9.2f %9.2f %9d\n", width, row.name, row.m.Precision, row.m.Recall, row.m.F1, row.m.Support)
	}
	return b.String()
}
