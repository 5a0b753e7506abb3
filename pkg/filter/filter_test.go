package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"S1", Standard},
		{"S12", Standard},
		{" S3", Standard},
		{"neg1", Blank},
		{"negative control", Blank},
		{"Liver_1", Sample},
		{"Serum", Sample},
		{"S", Sample},
		{"Neg", Sample},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.name); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestConfigApply(t *testing.T) {
	names := []string{"S1", "S2", "neg1", "Liver_1", "Liver_2", "Brain_1", ""}

	tests := []struct {
		name   string
		config Config
		want   []int
	}{
		{
			name:   "no filters",
			config: Config{},
			want:   []int{0, 1, 2, 3, 4, 5, 6},
		},
		{
			name:   "samples only",
			config: Config{Kinds: []Kind{Sample}},
			want:   []int{3, 4, 5, 6},
		},
		{
			name:   "standards and blanks",
			config: Config{Kinds: []Kind{Standard, Blank}},
			want:   []int{0, 1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.config.Apply(names)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSamplesAndStandards(t *testing.T) {
	names := []string{"S1", "Liver_1", "neg1", "S2"}
	if diff := cmp.Diff([]int{1}, Samples(names)); diff != "" {
		t.Errorf("Samples() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 3}, Standards(names)); diff != "" {
		t.Errorf("Standards() mismatch (-want +got):\n%s", diff)
	}
}

func TestKindString(t *testing.T) {
	if Sample.String() != "sample" || Standard.String() != "standard" || Blank.String() != "blank" {
		t.Errorf("unexpected Kind strings: %s %s %s", Sample, Standard, Blank)
	}
}
