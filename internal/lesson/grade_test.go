package lesson

import "testing"

func TestGradeFromFilename(t *testing.T) {
	cases := map[string]int{
		"3rd-animal-madness_ANIMA.md":                         3,
		"3rd-animal-madness-with-professor-aligator_ANIMA.md": 3,
		"5th_grade_science_lesson.md":                         5,
		"grade-7-lesson.md":                                   7,
		"grade_11_history.md":                                 11,
		"1st-day.md":                                          1,
		"no_grade_info.md":                                    DefaultGrade,
		"":                                                    DefaultGrade,
	}
	for name, want := range cases {
		if got := GradeFromFilename(name); got != want {
			t.Errorf("GradeFromFilename(%q) = %d, want %d", name, got, want)
		}
	}
	if DefaultGrade != 8 {
		t.Fatalf("default grade changed: %d", DefaultGrade)
	}
}
