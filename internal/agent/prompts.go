package agent

import (
	"fmt"
	"strings"

	"github.com/TheTrueAI/stellenscout/internal/model"
)

const repromptSuffix = "\n\nYour previous reply was not valid JSON. Return ONLY the JSON, with no markdown or explanation."

const profilerSystemPrompt = `You are an expert technical recruiter with deep knowledge of European job markets.
You will be given the raw text of a candidate's CV. Extract a comprehensive profile.

Be THOROUGH — capture everything relevant. Do not summarize away important details.

Return a JSON object with:
- "skills": List of ALL hard skills, tools, frameworks, methodologies, and technical competencies mentioned. Include specific tools (e.g., "SAP", "Power BI"), standards (e.g., "ISO 14064", "GHG Protocol"), and methods. Aim for 15-20 items.
- "experience_level": One of "Junior" (<2 years), "Mid" (2-5 years), "Senior" (5-10 years), "Lead" (10+ years), "Executive".
- "years_of_experience": (int) Total years of professional experience. Calculate from work history dates.
- "roles": List of 5 job titles the candidate is suited for, ordered from most to least specific. Include both English and local-language titles where relevant.
- "languages": List of spoken languages with proficiency level (e.g., "German B2", "English Native", "French C1").
- "domain_expertise": List of all industries and domains the candidate has worked in.
- "certifications": List of professional certifications, accreditations, or licenses. Empty list if none.
- "education": List of degrees with field of study (e.g., "MSc Environmental Engineering"). Include the university name if mentioned.
- "summary": A 2-3 sentence professional summary describing the candidate's core strengths and career trajectory.
- "work_history": List of work entries, most recent first. Each has "title", "company", "start_date", "end_date" (null if current), "duration_months", "skills_used", "description" (one sentence).
- "education_history": List of education entries. Each has "degree", "institution", "start_date", "end_date", "status" ("completed", "in_progress", or "dropped").

Return ONLY valid JSON, no markdown or explanation.`

const headhunterSystemPrompt = `You are a Search Specialist. Based on the candidate's profile and location, generate distinct search queries to find relevant job openings in Europe.

IMPORTANT: Keep queries SHORT and SIMPLE (1-3 words). Job search engines work best with simple, broad queries.

CRITICAL: Always use LOCAL city names, not English ones. For example use "München" not "Munich", "Köln" not "Cologne", "Wien" not "Vienna".

Strategy for MAXIMUM coverage:
- Generate a MIX of broad and specific queries
- Include BOTH English and local-language job titles for the target country
- Include a very few queries WITHOUT a city to find remote/nationwide jobs
- Use different synonyms for the same role (e.g., "Manager", "Lead", "Specialist", "Analyst")
- Include 1-2 broad industry/domain queries

Return ONLY a JSON array of search query strings, no explanation.
Example: ["Python Developer München", "Backend Engineer", "Software Engineer Berlin", "Developer remote", "Cloud Engineer"]`

const screenerSystemPrompt = `You are a strict Hiring Manager. Evaluate if the candidate is a fit for this specific job.

**Scoring Rubric (0-100):**
- **100:** Perfect match. The candidate has the exact years of experience, tech stack, and language skills required.
- **80-99:** Great match. Missing minor "nice-to-haves" or slightly different domain, but strong core skills.
- **50-79:** Potential fit. Strong skills but maybe junior/senior mismatch, or missing a key framework.
- **0-49:** Hard pass. Wrong stack, wrong language proficiency, or wrong role entirely.

**Critical constraints:**
- If the job description requires fluency in a local language (e.g., German, French, Dutch) and the candidate lacks that proficiency (A1/A2 or not listed), the score must be capped at 30.
- Pay attention to visa/work permit requirements if mentioned.

Return ONLY a JSON object with:
- "score": (int) The match score 0-100
- "reasoning": (string) A concise 1-2 sentence explanation of the score
- "missing_skills": (list) What is the candidate missing? Empty list if nothing major.

Be critical but fair. European companies often have strict requirements.`

// maxDescriptionChars bounds the job description embedded in a screener
// prompt so long postings don't blow the token budget.
const maxDescriptionChars = 2000

func profileContext(p *model.CandidateProfile, location string) string {
	return fmt.Sprintf(`Candidate Profile:
- Skills: %s
- Experience Level: %s
- Target Roles: %s
- Languages: %s
- Domain Expertise: %s
- Target Location: %s`,
		strings.Join(p.Skills, ", "),
		p.ExperienceLevel,
		strings.Join(p.Roles, ", "),
		strings.Join(p.Languages, ", "),
		strings.Join(p.DomainExpertise, ", "),
		location,
	)
}

func screenerPrompt(p *model.CandidateProfile, job model.JobListing) string {
	var extra strings.Builder
	if len(p.Education) > 0 {
		fmt.Fprintf(&extra, "\n- **Education:** %s", strings.Join(p.Education, ", "))
	}
	if len(p.Certifications) > 0 {
		fmt.Fprintf(&extra, "\n- **Certifications:** %s", strings.Join(p.Certifications, ", "))
	}
	if p.Summary != "" {
		fmt.Fprintf(&extra, "\n- **Summary:** %s", p.Summary)
	}

	description := job.Description
	if description == "" {
		description = "No detailed description available."
	} else if len(description) > maxDescriptionChars {
		description = description[:maxDescriptionChars]
	}

	return fmt.Sprintf(`%s

## Candidate Profile
- **Skills:** %s
- **Experience:** %s (%d years)
- **Target Roles:** %s
- **Languages:** %s
- **Domain Expertise:** %s%s

## Job Listing
- **Title:** %s
- **Company:** %s
- **Location:** %s

**Job Description:**
%s

---
Evaluate this job match and return JSON.`,
		screenerSystemPrompt,
		strings.Join(p.Skills, ", "),
		p.ExperienceLevel, p.YearsOfExperience,
		strings.Join(p.Roles, ", "),
		strings.Join(p.Languages, ", "),
		strings.Join(p.DomainExpertise, ", "),
		extra.String(),
		job.Title, job.CompanyName, job.Location,
		description,
	)
}
