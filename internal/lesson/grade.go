package lesson

import (
	"regexp"
	"strconv"
)

// DefaultGrade applies when a filename carries no grade hint.
const DefaultGrade = 8

var (
	ordinalGrade = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)`)
	labeledGrade = regexp.MustCompile(`grade[_\-](\d+)`)
)

// GradeFromFilename extracts a grade level from names such as
// "3rd-animal-madness.md" or "grade-7-lesson.md".
func GradeFromFilename(name string) int {
	for _, re := range []*regexp.Regexp{ordinalGrade, labeledGrade} {
		if m := re.FindStringSubmatch(name); m != nil {
			if grade, err := strconv.Atoi(m[1]); err == nil {
				return grade
			}
		}
	}
	return DefaultGrade
}
