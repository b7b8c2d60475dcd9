package detect

// Keywords are the heuristic vocabulary for job-page relevance and keyword
// density scoring. Passed into constructors rather than read from package
// state, so tests can run with a reduced or alternate vocabulary.
type Keywords struct {
	// Job terms counted individually.
	Job []string
	// StrongPhrases are multi-word markers that weigh more than single
	// keyword hits.
	StrongPhrases []string
}

// DefaultKeywords is the built-in vocabulary.
func DefaultKeywords() Keywords {
	return Keywords{
		Job: []string{
			"job", "position", "career", "careers", "application", "apply",
			"candidate", "resume", "cv", "hiring", "employment", "recruiter",
			"recruiting", "opportunity", "vacancy", "salary", "experience",
			"qualifications", "skills", "interview", "role", "talent",
		},
		StrongPhrases: []string{
			"submit application", "apply now", "apply for this job",
			"job application", "cover letter", "work authorization",
			"equal opportunity employer", "years of experience",
			"why do you want to work",
		},
	}
}
