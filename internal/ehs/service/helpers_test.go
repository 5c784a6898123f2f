package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/notify"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/risk"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/sse"
)

// recordingNotifier 记录投递的卡片
type recordingNotifier struct {
	cards chan notify.Card
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{cards: make(chan notify.Card, 16)}
}

func (n *recordingNotifier) Send(ctx context.Context, card notify.Card) error {
	n.cards <- card
	return nil
}

func (n *recordingNotifier) next(t *testing.T) notify.Card {
	t.Helper()
	select {
	case c := <-n.cards:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification")
		return notify.Card{}
	}
}

func (n *recordingNotifier) none(t *testing.T) {
	t.Helper()
	select {
	case c := <-n.cards:
		t.Fatalf("unexpected notification %q", c.Event)
	case <-time.After(50 * time.Millisecond):
	}
}

type fixture struct {
	svc      *Services
	repos    *repository.Repositories
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := repository.NewMemoryRepositories()
	n := newRecordingNotifier()
	svc := New(Deps{
		Repos:    repos,
		Hub:      sse.NewHub(zap.NewNop()),
		Notifier: n,
		Logger:   zap.NewNop(),
	})
	return &fixture{svc: svc, repos: repos, notifier: n}
}

// samplePlan 一个高风险危害(Working at Height 3x3)和一个低风险危害(Noise 1x2)
func samplePlan() *entity.SafetyPlan {
	return &entity.SafetyPlan{
		Group:                 "Europe",
		TaskName:              "Replace source vessel",
		Date:                  "2026-10-01",
		Location:              "F34 Bay 3",
		Shift:                 "Day",
		MachineNumber:         "M1234",
		CanSocialDistance:     "yes",
		Q1SpecializedTraining: "no",
		Q2Chemicals:           "no",
		Q3ImpactOthers:        "no",
		Q4Falls:               "yes",
		Q5Barricades:          "no",
		Q6Loto:                "no",
		Q7Lifting:             "no",
		Q8Ergonomics:          "no",
		Q9OtherConcerns:       "no",
		Q10HeadInjury:         "no",
		Q11OtherPPE:           "no",
		Hazards:               entity.HazardList{"Working at Height", "Noise"},
		Assessments: entity.AssessmentMap{
			"Working at Height": {Severity: 3, Likelihood: 3, Mitigation: "Harness"},
			"Noise":             {Severity: 1, Likelihood: 2, Mitigation: "Ear defenders"},
		},
		LeadName:  "Aoife Byrne",
		Engineers: entity.StringList{"Sean", "Mary"},
	}
}

// lowRiskPlan 所有危害评分 < 8
func lowRiskPlan() *entity.SafetyPlan {
	p := samplePlan()
	p.Assessments["Working at Height"] = risk.Assessment{Severity: 2, Likelihood: 3, Mitigation: "Harness"}
	return p
}

func createPlan(t *testing.T, f *fixture, p *entity.SafetyPlan) *entity.SafetyPlan {
	t.Helper()
	created, err := f.svc.SafetyPlans.Create(context.Background(), p)
	require.NoError(t, err)
	return created
}

func rawFields(t *testing.T, m map[string]interface{}) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		out[k] = b
	}
	return out
}
