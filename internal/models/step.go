// internal/models/step.go
package models

// Step is the wizard state the user is currently in. Progression is
// linear up to the dashboard; once a topic exists the dashboard tools
// become laterally navigable.
type Step string

const (
	StepLanding         Step = "landing"
	StepProfile         Step = "profile"
	StepTopic           Step = "topic"
	StepTopicValidation Step = "topic-validation"
	StepOutline         Step = "outline"
	StepDashboard       Step = "dashboard"
	StepPaper           Step = "paper"
	StepCoach           Step = "coach"
	StepReferences      Step = "references"
	StepResources       Step = "resources"
)

// AllSteps in wizard order.
var AllSteps = []Step{
	StepLanding, StepProfile, StepTopic, StepTopicValidation,
	StepOutline, StepDashboard, StepPaper, StepCoach,
	StepReferences, StepResources,
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	for _, step := range AllSteps {
		if s == step {
			return true
		}
	}
	return false
}

// ReconcileStep corrects a step against the project's actual progress,
// so that after a reload or a cascading invalidation the user is never
// shown a step whose prerequisite data is missing. Landing is exempt.
// The rule is idempotent and every correction moves strictly earlier in
// the wizard, so it cannot loop.
func ReconcileStep(step Step, p *Project) Step {
	if step == StepLanding {
		return step
	}
	if !p.UserProfile.IsComplete() {
		return StepProfile
	}
	if step != StepProfile && step != StepTopic && p.Topic == nil {
		return StepTopic
	}
	return step
}

// CanNavigate is the capability predicate for direct (sidebar-style)
// navigation. It gates which steps are reachable by explicit request;
// the reconcile rule above still has the final word.
func CanNavigate(step Step, p *Project) bool {
	switch step {
	case StepTopic, StepProfile:
		return true
	case StepDashboard, StepOutline, StepCoach, StepReferences, StepResources:
		return p.Topic != nil
	case StepPaper:
		return len(p.Outline) > 0
	default:
		// Landing and TopicValidation are only entered by their
		// dedicated flows, never by direct navigation.
		return false
	}
}
