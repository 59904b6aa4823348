package model

import (
	"sort"
	"strconv"
)

// ClassMetrics are precision, recall and F1 for one class
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ClassificationReport summarizes predictions against ground truth.
// Undefined ratios (zero denominators) are reported as 0.
type ClassificationReport struct {
	Classes     []ClassMetrics `json:"classes"`
	Accuracy    float64        `json:"accuracy"`
	MacroAvg    ClassMetrics   `json:"macro_avg"`
	WeightedAvg ClassMetrics   `json:"weighted_avg"`
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Classify builds a per-class report over every label present in
// either yTrue or yPred.
func Classify(yTrue, yPred []int) ClassificationReport {
	seen := map[int]bool{}
	for _, v := range yTrue {
		seen[v] = true
	}
	for _, v := range yPred {
		seen[v] = true
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	var rep ClassificationReport
	var correct, total int
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
		total++
	}
	rep.Accuracy = ratio(correct, total)

	rep.MacroAvg.Label = "macro avg"
	rep.WeightedAvg.Label = "weighted avg"
	for _, l := range labels {
		var tp, fp, fn, support int
		for i := range yTrue {
			switch {
			case yTrue[i] == l && yPred[i] == l:
				tp++
			case yTrue[i] != l && yPred[i] == l:
				fp++
			case yTrue[i] == l && yPred[i] != l:
				fn++
			}
			if yTrue[i] == l {
				support++
			}
		}
		m := ClassMetrics{
			Label:     strconv.Itoa(l),
			Precision: ratio(tp, tp+fp),
			Recall:    ratio(tp, tp+fn),
			Support:   support,
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		rep.Classes = append(rep.Classes, m)

		rep.MacroAvg.Precision += m.Precision
		rep.MacroAvg.Recall += m.Recall
		rep.MacroAvg.F1 += m.F1
		w := ratio(support, total)
		rep.WeightedAvg.Precision += w * m.Precision
		rep.WeightedAvg.Recall += w * m.Recall
		rep.WeightedAvg.F1 += w * m.F1
	}
	if k := float64(len(labels)); k > 0 {
		rep.MacroAvg.Precision /= k
		rep.MacroAvg.Recall /= k
		rep.MacroAvg.F1 /= k
	}
	rep.MacroAvg.Support = total
	rep.WeightedAvg.Support = total
	return rep
}
