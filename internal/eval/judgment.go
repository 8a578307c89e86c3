// Package eval runs the offline evaluation pipeline: synthetic question
// generation, retrieval scoring, answer generation, faithfulness and
// correctness judging, and metric aggregation.
package eval

import "strings"

const (
	// gradeWindow bounds how far into a grading response the digit is
	// searched for.
	gradeWindow = 10
	// verdictWindow bounds how far into a judge response the verdict is
	// searched for.
	verdictWindow = 20
)

// ParseGrade extracts a 1-5 grade from a free-form judge response. Digits
// are matched in priority order within the first few characters; a response
// with no recognizable digit grades as 1.
func ParseGrade(text string) int {
	head := strings.ToLower(text)
	if len(head) > gradeWindow {
		head = head[:gradeWindow]
	}
	for grade, digit := range []string{"1", "2", "3", "4", "5"} {
		if strings.Contains(head, digit) {
			return grade + 1
		}
	}
	return 1
}

// ParseVerdict reports whether a yes/no judge response affirms, looking for
// "yes" near the start of the text.
func ParseVerdict(text string) bool {
	head := strings.ToLower(text)
	if len(head) > verdictWindow {
		head = head[:verdictWindow]
	}
	return strings.Contains(head, "yes")
}
