package models

import "testing"

func TestPlanType_Valid(t *testing.T) {
	tests := []struct {
		name string
		plan PlanType
		want bool
	}{
		{"task_list is valid", PlanTaskList, true},
		{"phase_dev_plan is valid", PlanPhaseDev, true},
		{"roadmap is valid", PlanRoadmap, true},
		{"epic is valid", PlanEpic, true},
		{"vision_full is valid", PlanVisionFull, true},
		{"empty string is invalid", PlanType(""), false},
		{"unknown tier is invalid", PlanType("mega_plan"), false},
		{"uppercase is invalid", PlanType("EPIC"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plan.Valid(); got != tt.want {
				t.Errorf("PlanType(%q).Valid() = %v, want %v", tt.plan, got, tt.want)
			}
		})
	}
}

func TestPlanType_RankOrdering(t *testing.T) {
	ordered := []PlanType{PlanTaskList, PlanPhaseDev, PlanRoadmap, PlanEpic, PlanVisionFull}

	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Rank() >= ordered[i].Rank() {
			t.Errorf("Rank(%s) = %d should be below Rank(%s) = %d",
				ordered[i-1], ordered[i-1].Rank(), ordered[i], ordered[i].Rank())
		}
	}

	if got := PlanType("bogus").Rank(); got != 0 {
		t.Errorf("unknown plan type Rank() = %d, want 0", got)
	}
}

func TestScale_MaxPlanType(t *testing.T) {
	tests := []struct {
		name  string
		scale Scale
		want  PlanType
	}{
		{"small caps at phase_dev_plan", ScaleSmall, PlanPhaseDev},
		{"medium caps at epic", ScaleMedium, PlanEpic},
		{"large is uncapped", ScaleLarge, PlanVisionFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scale.MaxPlanType(); got != tt.want {
				t.Errorf("Scale(%q).MaxPlanType() = %q, want %q", tt.scale, got, tt.want)
			}
		})
	}
}

func TestScale_Valid(t *testing.T) {
	for _, s := range []Scale{ScaleSmall, ScaleMedium, ScaleLarge} {
		if !s.Valid() {
			t.Errorf("Scale(%q) should be valid", s)
		}
	}
	for _, s := range []Scale{Scale(""), Scale("XL"), Scale("s")} {
		if s.Valid() {
			t.Errorf("Scale(%q) should not be valid", s)
		}
	}
}

func TestIntent_Valid(t *testing.T) {
	valid := []Intent{IntentBuild, IntentModify, IntentRefactor, IntentMigrate, IntentOptimize}
	for _, in := range valid {
		if !in.Valid() {
			t.Errorf("Intent(%q) should be valid", in)
		}
	}

	if Intent("destroy").Valid() {
		t.Error("Intent(\"destroy\") should not be valid")
	}
	if Intent("").Valid() {
		t.Error("empty Intent should not be valid")
	}
}
