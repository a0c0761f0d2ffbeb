package auth

// TemplateUserKey is the view variable holding the current account profile
var TemplateUserKey = "user"

var subjectTitles = map[Subject]string{
	SubjectSecurity:     "Information security",
	SubjectDataAnalysis: "Data analysis",
}

// TemplateHelpers returns functions to register as view globals.
//
// In templates:
//
//	{% if is_authenticated(user) %}
//	{{ subject_title("bmtt") }}: {{ score_for(user, "bmtt") }}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"subject_title":    subjectTitle,
		"score_for":        scoreFor,
		"subjects":         []Subject{SubjectSecurity, SubjectDataAnalysis},
	}
}

func isAuthenticated(user any) bool {
	switch u := user.(type) {
	case UserInfo:
		return u.Email != ""
	case *UserInfo:
		return u != nil && u.Email != ""
	case *Identity:
		return u != nil && u.Account != nil
	case *Account:
		return u != nil
	default:
		return false
	}
}

func subjectTitle(subject string) string {
	if title, ok := subjectTitles[subject]; ok {
		return title
	}
	return subject
}

func scoreFor(user any, subject string) int {
	var info UserInfo
	switch u := user.(type) {
	case UserInfo:
		info = u
	case *UserInfo:
		if u == nil {
			return 0
		}
		info = *u
	case *Account:
		if u == nil {
			return 0
		}
		info = NewUserInfo(u)
	default:
		return 0
	}

	switch subject {
	case SubjectSecurity:
		return info.Score1
	case SubjectDataAnalysis:
		return info.Score2
	default:
		return 0
	}
}
