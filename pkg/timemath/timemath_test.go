package timemath

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{
			name:  "24h morning",
			input: "09:00",
			want:  9 * 60,
		},
		{
			name:  "24h afternoon",
			input: "17:30",
			want:  17*60 + 30,
		},
		{
			name:  "24h midnight",
			input: "00:00",
			want:  0,
		},
		{
			name:  "12h morning",
			input: "09:00 AM",
			want:  9 * 60,
		},
		{
			name:  "12h afternoon",
			input: "5:30 PM",
			want:  17*60 + 30,
		},
		{
			name:  "12h noon",
			input: "12:00 PM",
			want:  12 * 60,
		},
		{
			name:  "12h midnight",
			input: "12:00 AM",
			want:  0,
		},
		{
			name:  "lowercase meridiem",
			input: "9:15 pm",
			want:  21*60 + 15,
		},
		{
			name:  "meridiem without space",
			input: "9:15pm",
			want:  21*60 + 15,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "soon",
			wantErr: true,
		},
		{
			name:    "hour out of range 24h",
			input:   "25:00",
			wantErr: true,
		},
		{
			name:    "hour out of range 12h",
			input:   "13:00 PM",
			wantErr: true,
		},
		{
			name:    "minute out of range",
			input:   "09:75",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrParse) {
					t.Fatalf("Parse(%q) error = %v, want ErrParse", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for m := 0; m < MinutesPerDay; m += 7 {
		got, err := Parse(Format(m))
		if err != nil {
			t.Fatalf("Parse(Format(%d)) error: %v", m, err)
		}
		if got != m {
			t.Fatalf("Parse(Format(%d)) = %d", m, got)
		}

		got12, err := Parse(Format12(m))
		if err != nil {
			t.Fatalf("Parse(Format12(%d)) error: %v", m, err)
		}
		if got12 != m {
			t.Fatalf("Parse(Format12(%d)) = %d, formatted %q", m, got12, Format12(m))
		}
	}
}

func TestDuration(t *testing.T) {
	d, err := Duration(9*60, 10*60+30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 90 {
		t.Errorf("Duration = %d, want 90", d)
	}

	if d, err = Duration(9*60, 9*60); err != nil || d != 0 {
		t.Errorf("zero-length duration: got %d, %v", d, err)
	}

	if _, err = Duration(10*60, 9*60); !errors.Is(err, ErrInvalidTimeRange) {
		t.Errorf("reversed range error = %v, want ErrInvalidTimeRange", err)
	}
}

func TestAddMinutesRoundTrip(t *testing.T) {
	starts := []int{0, 9 * 60, 13*60 + 45, 23 * 60}
	durations := []int{0, 15, 60, 150}

	for _, start := range starts {
		for _, d := range durations {
			end, err := AddMinutes(start, d)
			if start+d > MinutesPerDay {
				if !errors.Is(err, ErrTimeOverflow) {
					t.Fatalf("AddMinutes(%d, %d) error = %v, want ErrTimeOverflow", start, d, err)
				}
				continue
			}
			if err != nil {
				t.Fatalf("AddMinutes(%d, %d) error: %v", start, d, err)
			}
			got, err := Duration(start, end)
			if err != nil {
				t.Fatalf("Duration round trip error: %v", err)
			}
			if got != d {
				t.Errorf("Duration(%d, AddMinutes(%d, %d)) = %d", start, start, d, got)
			}
		}
	}

	if _, err := AddMinutes(23*60, 120); !errors.Is(err, ErrTimeOverflow) {
		t.Errorf("midnight crossing error = %v, want ErrTimeOverflow", err)
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{
			name: "disjoint",
			a:    Interval{Start: 540, End: 600},
			b:    Interval{Start: 660, End: 720},
			want: false,
		},
		{
			name: "touching does not overlap",
			a:    Interval{Start: 540, End: 600},
			b:    Interval{Start: 600, End: 660},
			want: false,
		},
		{
			name: "partial overlap",
			a:    Interval{Start: 540, End: 630},
			b:    Interval{Start: 600, End: 660},
			want: true,
		},
		{
			name: "containment",
			a:    Interval{Start: 540, End: 720},
			b:    Interval{Start: 600, End: 660},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.a, tt.b); got != tt.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := Overlaps(tt.b, tt.a); got != tt.want {
				t.Errorf("Overlaps(%v, %v) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	got := Merge([]Interval{
		{Start: 720, End: 780},
		{Start: 540, End: 600},
		{Start: 590, End: 650},
		{Start: 650, End: 660},
	})
	want := []Interval{
		{Start: 540, End: 660},
		{Start: 720, End: 780},
	}
	if len(got) != len(want) {
		t.Fatalf("Merge returned %d intervals, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Merge[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSubtract(t *testing.T) {
	window := Interval{Start: 540, End: 1020} // 09:00-17:00

	free := Subtract(window, []Interval{{Start: 600, End: 660}})
	want := []Interval{
		{Start: 540, End: 600},
		{Start: 660, End: 1020},
	}
	if len(free) != 2 || free[0] != want[0] || free[1] != want[1] {
		t.Fatalf("Subtract = %v, want %v", free, want)
	}

	// Busy extending outside the window is clipped.
	free = Subtract(window, []Interval{{Start: 480, End: 570}, {Start: 1000, End: 1100}})
	want = []Interval{{Start: 570, End: 1000}}
	if len(free) != 1 || free[0] != want[0] {
		t.Fatalf("Subtract with clipping = %v, want %v", free, want)
	}

	// Fully busy window.
	if free = Subtract(window, []Interval{{Start: 500, End: 1100}}); len(free) != 0 {
		t.Fatalf("fully busy window returned %v", free)
	}
}
