package evaluator

import "fmt"

// Explain renders a human-readable breakdown of a REJECT verdict, one
// line per failing condition, for a consultant deciding whether to
// revise a plan.
func Explain(r Result) []string {
	if r.Evaluation.Decision == "ACCEPT" {
		return nil
	}
	var lines []string
	for _, c := range r.Evaluation.Conditions {
		if c.Pass {
			continue
		}
		switch c.Name {
		case "present_value":
			lines = append(lines, fmt.Sprintf("present value %s falls short of the standard plan's target", c.Actual.String()))
		default:
			line := fmt.Sprintf("%s: %s%% ", c.Name, c.Actual.String())
			if c.Max == nil {
				line += "is below the required minimum"
			} else {
				line += fmt.Sprintf("is outside the required range [%s%%", c.Min.String())
				if c.Max != nil {
					line += fmt.Sprintf(", %s%%]", c.Max.String())
				} else {
					line += ", ∞)"
				}
			}
			lines = append(lines, line)
		}
	}
	return lines
}
