package detect

import "strings"

// ProfileRule maps keyword hits in a field's label+placeholder to a dotted
// path in the candidate profile schema. Matching is first-match-wins over
// the table in order — the table is the precedence contract, so more
// specific rows must precede generic ones.
type ProfileRule struct {
	Keywords []string
	Path     string
}

// DefaultProfileRules is the built-in mapping table. It intentionally errs
// toward false negatives: an unmatched field simply has no mapping.
func DefaultProfileRules() []ProfileRule {
	return []ProfileRule{
		// Compound/specific rows first.
		{[]string{"linkedin"}, "links.linkedin"},
		{[]string{"github"}, "links.github"},
		{[]string{"portfolio", "personal website", "personal site"}, "links.portfolio"},
		{[]string{"cover letter", "covering letter"}, "documents.coverLetter"},
		{[]string{"resume", "cv", "curriculum vitae"}, "documents.resume"},
		{[]string{"work authorization", "authorized to work", "right to work"}, "legal.workAuthorization"},
		{[]string{"sponsorship", "visa"}, "legal.sponsorship"},
		{[]string{"veteran"}, "legal.veteranStatus"},
		{[]string{"disability"}, "legal.disability"},
		{[]string{"gender"}, "legal.gender"},
		{[]string{"race", "ethnicity"}, "legal.ethnicity"},
		{[]string{"first name", "given name", "forename"}, "personal.firstName"},
		{[]string{"last name", "family name", "surname"}, "personal.lastName"},
		{[]string{"full name", "your name"}, "personal.fullName"},
		{[]string{"preferred name"}, "personal.preferredName"},
		{[]string{"email"}, "personal.email"},
		{[]string{"phone", "mobile", "telephone"}, "personal.phone"},
		{[]string{"street", "address line"}, "address.street"},
		{[]string{"city", "town"}, "address.city"},
		{[]string{"state", "province", "region"}, "address.state"},
		{[]string{"zip", "postal"}, "address.zip"},
		{[]string{"country"}, "address.country"},
		{[]string{"current company", "current employer", "company name", "employer"}, "work.currentCompany"},
		{[]string{"current title", "job title", "current role", "current position"}, "work.currentTitle"},
		{[]string{"years of experience", "experience"}, "work.experienceYears"},
		{[]string{"notice period"}, "work.noticePeriod"},
		{[]string{"school", "university", "college", "institution"}, "education.school"},
		{[]string{"degree"}, "education.degree"},
		{[]string{"major", "field of study", "discipline"}, "education.major"},
		{[]string{"graduation"}, "education.graduationYear"},
		{[]string{"salary", "compensation", "expected pay", "desired pay"}, "compensation.expectedSalary"},
		{[]string{"start date", "available", "availability"}, "availability.startDate"},
		{[]string{"how did you hear", "referral", "referred by"}, "referral.source"},
		{[]string{"pronouns"}, "personal.pronouns"},
		{[]string{"website", "url"}, "links.website"},
	}
}

// mapProfile matches label+placeholder text against the rule table.
// Case-insensitive substring match; first matching row wins; no match
// leaves the mapping empty.
func (c *Classifier) mapProfile(text string) string {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return ""
	}
	for _, rule := range c.profileRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Path
			}
		}
	}
	return ""
}
