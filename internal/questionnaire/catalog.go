package questionnaire

// Catalog returns the built-in questionnaires used to seed a fresh backend.
func Catalog() []Questionnaire {
	return []Questionnaire{
		WellbeingQuestionnaire(),
		TeamRetroQuestionnaire(),
		CourseFeedbackQuestionnaire(),
	}
}

// WellbeingQuestionnaire returns a short weekly check-in
func WellbeingQuestionnaire() Questionnaire {
	return Questionnaire{
		ID:          1,
		Name:        "Weekly wellbeing check-in",
		Description: "A two-minute pulse on how the week went",
		Questions: []Question{
			{
				ID:       101,
				Text:     "How would you rate your week overall?",
				Category: CategorySingleChoice,
				Options: []Option{
					{ID: 1, Text: "Great"},
					{ID: 2, Text: "Good"},
					{ID: 3, Text: "Okay"},
					{ID: 4, Text: "Rough"},
				},
			},
			{
				ID:       102,
				Text:     "Which of these took most of your energy?",
				Category: CategoryMultiChoice,
				Options: []Option{
					{ID: 1, Text: "Meetings"},
					{ID: 2, Text: "Focused work"},
					{ID: 3, Text: "Support requests"},
					{ID: 4, Text: "Hiring"},
					{ID: 5, Text: "Personal matters"},
				},
			},
			{
				ID:       103,
				Text:     "What is one thing that would make next week better?",
				Category: CategoryFreeText,
			},
		},
	}
}

// TeamRetroQuestionnaire returns a sprint retrospective
func TeamRetroQuestionnaire() Questionnaire {
	return Questionnaire{
		ID:          2,
		Name:        "Sprint retrospective",
		Description: "Collect input ahead of the retro meeting",
		Questions: []Question{
			{
				ID:       201,
				Text:     "Did the sprint meet its goal?",
				Category: CategorySingleChoice,
				Options: []Option{
					{ID: 1, Text: "Yes"},
					{ID: 2, Text: "Partially"},
					{ID: 3, Text: "No"},
				},
			},
			{
				ID:       202,
				Text:     "What went well?",
				Category: CategoryFreeText,
			},
			{
				ID:       203,
				Text:     "What slowed the team down?",
				Category: CategoryMultiChoice,
				Options: []Option{
					{ID: 1, Text: "Unclear requirements"},
					{ID: 2, Text: "Flaky CI"},
					{ID: 3, Text: "Review latency"},
					{ID: 4, Text: "Production incidents"},
					{ID: 5, Text: "Dependencies on other teams"},
				},
			},
			{
				ID:       204,
				Text:     "What should we try next sprint?",
				Category: CategoryFreeText,
			},
		},
	}
}

// CourseFeedbackQuestionnaire returns an end-of-course survey
func CourseFeedbackQuestionnaire() Questionnaire {
	return Questionnaire{
		ID:          3,
		Name:        "Course feedback",
		Description: "Tell us how the course worked for you",
		Questions: []Question{
			{
				ID:       301,
				Text:     "How difficult was the material?",
				Category: CategorySingleChoice,
				Options: []Option{
					{ID: 1, Text: "Too easy"},
					{ID: 2, Text: "About right"},
					{ID: 3, Text: "Too hard"},
				},
			},
			{
				ID:       302,
				Text:     "Which formats helped you learn?",
				Category: CategoryMultiChoice,
				Options: []Option{
					{ID: 1, Text: "Lectures"},
					{ID: 2, Text: "Exercises"},
					{ID: 3, Text: "Reading"},
					{ID: 4, Text: "Office hours"},
				},
			},
			{
				ID:       303,
				Text:     "Anything else you want the instructors to know?",
				Category: CategoryFreeText,
			},
		},
	}
}
