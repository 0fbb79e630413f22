package adkstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalDeltaReplacesPartials(t *testing.T) {
	var s State
	s.Apply(TextDelta("Hel", true))
	s.Apply(TextDelta("lo", true))
	assert.Equal(t, "Hello", s.VisibleText)

	s.Apply(TextDelta("Hello world", false))
	assert.Equal(t, "Hello world", s.VisibleText)

	s.Apply(TextDelta("!", true))
	assert.Equal(t, "Hello world!", s.VisibleText)
}

func TestFirstFunctionCallWinsRouting(t *testing.T) {
	var s State
	s.Apply(FunctionCall("goal_planning_agent", map[string]any{"q": "retire"}))
	s.Apply(FunctionCall("risk_assessment_agent", nil))

	require.NotNil(t, s.Routing)
	assert.Equal(t, "goal_planning_agent", s.Routing.CalledAgent)
	assert.Equal(t, "🔄 Routing your request to GOAL PLANNING specialist...", s.Routing.RoutingMessage)
}

func TestFunctionResultIsAuthoritative(t *testing.T) {
	var s State
	s.Apply(TextDelta("thinking", true))
	s.Apply(AuthorTag("coordinator_agent"))
	s.Apply(FunctionResult("tax_agent", "File by July"))
	assert.Equal(t, "File by July", s.VisibleText)
	assert.Equal(t, "tax_agent", s.AgentName)

	// An author tag on the same line applies after the result.
	s.Apply(AuthorTag("coordinator_agent"))
	assert.Equal(t, "coordinator_agent", s.AgentName)
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"goal_planning_agent":      "GOAL PLANNING",
		"tax_agent":                "TAX",
		"risk_assessment_agent_v2": "RISK ASSESSMENT_V2",
		"investment_portfolio_mgr": "INVESTMENT PORTFOLIO_MGR",
		"planner":                  "PLANNER",
		"":                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, DisplayName(in), in)
	}
}

func TestStateResultDefaults(t *testing.T) {
	var s State
	r := s.Result()
	assert.Equal(t, Result{
		Response:  DefaultResponse,
		AgentName: DefaultAgentName,
		Status:    StatusSuccess,
	}, r)
	assert.True(t, r.OK())
	assert.Nil(t, r.Charts)
	assert.Nil(t, r.RoutingInfo)
}

func TestStateResultCopiesState(t *testing.T) {
	s := State{
		VisibleText: "done",
		AgentName:   "tax_agent",
		Routing:     &RoutingInfo{CalledAgent: "tax_agent", RoutingMessage: RoutingMessage("tax_agent")},
		Charts:      []Chart{{Type: ChartPie, Title: "Split"}},
	}
	r := s.Result()
	s.Routing.CalledAgent = "mutated"
	s.Charts[0].Title = "mutated"

	assert.Equal(t, "tax_agent", r.RoutingInfo.CalledAgent)
	assert.Equal(t, "Split", r.Charts[0].Title)
}

func TestFailureResult(t *testing.T) {
	r := FailureResult(assert.AnError)
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, ApologyResponse, r.Response)
	assert.Equal(t, assert.AnError.Error(), r.Error)
	assert.Empty(t, r.AgentName)
	assert.Nil(t, r.Charts)
	assert.False(t, r.OK())

	assert.Equal(t, "Unknown error", FailureResult(nil).Error)
}
