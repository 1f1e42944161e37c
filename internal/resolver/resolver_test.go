package resolver

import (
	"testing"

	"talent-mirror/internal/matching"
	"talent-mirror/internal/model"
	"talent-mirror/internal/opt"

	"gorm.io/datatypes"
)

func TestResolveFirstContributingSourceWins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sources []opt.Value[string]
		want    string
		present bool
	}{
		{name: "sentinel skipped", sources: []opt.Value[string]{opt.Some("null"), opt.Some("x"), opt.Some("y")}, want: "x", present: true},
		{name: "all absent", sources: []opt.Value[string]{opt.None[string](), opt.None[string](), opt.None[string]()}},
		{name: "first wins", sources: []opt.Value[string]{opt.Some("a"), opt.Some("b")}, want: "a", present: true},
		{name: "case insensitive sentinel", sources: []opt.Value[string]{opt.Some(" NULL "), opt.Some("Not Provided"), opt.Some("z")}, want: "z", present: true},
		{name: "blank skipped", sources: []opt.Value[string]{opt.Some("   "), opt.Some(" b ")}, want: "b", present: true},
		{name: "only sentinels", sources: []opt.Value[string]{opt.Some("null"), opt.Some("null")}},
		{name: "no sources"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Resolve("email", tt.sources...).Get()
			if ok != tt.present || got != tt.want {
				t.Fatalf("Resolve = %q (present=%v), want %q (present=%v)", got, ok, tt.want, tt.present)
			}
		})
	}
}

func TestResolveWithCustomPredicate(t *testing.T) {
	t.Parallel()

	negative := func(v int) bool { return v < 0 }
	got, idx := ResolveWith(negative, opt.Some(-1), opt.None[int](), opt.Some(4))
	if v, _ := got.Get(); v != 4 || idx != 2 {
		t.Fatalf("ResolveWith = %v at %d", v, idx)
	}
	if _, idx := ResolveWith[int](nil, opt.Some(0)); idx != 0 {
		t.Fatalf("zero int is a real value, got index %d", idx)
	}
}

func strPtr(s string) *string { return &s }

// Every multi-source field must treat the sentinel exactly like absence,
// whichever source carries it.
func TestResolveProfileFiltersSentinelOnEveryField(t *testing.T) {
	t.Parallel()

	for _, spec := range fieldSpecs {
		spec := spec
		t.Run(spec.name, func(t *testing.T) {
			t.Parallel()

			parsed := &matching.ParsedCV{}
			stored := &model.CandidateProfile{ID: "u1"}
			account := &model.Account{ID: "u1"}
			setAll(parsed, stored, account, "null")

			got := findField(ResolveProfile(parsed, stored, account), spec.name)
			if got.Available {
				t.Fatalf("%s resolved sentinel to %q", spec.name, got.Value)
			}
			if got.Display() != NotAvailable {
				t.Fatalf("%s display = %q", spec.name, got.Display())
			}
		})
	}
}

func TestResolveProfilePriorityOrder(t *testing.T) {
	t.Parallel()

	parsed := &matching.ParsedCV{Email: opt.Some("null"), Phone: opt.Some("111")}
	stored := &model.CandidateProfile{
		ID:          "u1",
		Bio:         strPtr("Gopher"),
		EmailFromCV: strPtr("stored@example.com"),
		PhoneNumber: strPtr("222"),
		Address:     strPtr("null"),
		Skills:      datatypes.JSONSlice[string]{"go", "null"},
	}
	account := &model.Account{
		ID:        "u1",
		Email:     strPtr("account@example.com"),
		Location:  strPtr("Lisbon"),
		FirstName: strPtr("Ada"),
		LastName:  strPtr("null"),
	}

	got := ResolveProfile(parsed, stored, account)
	if got.ID != "u1" {
		t.Fatalf("unexpected id %q", got.ID)
	}
	if got.Email.Value != "stored@example.com" || got.Email.Source != SourceStored {
		t.Fatalf("unexpected email %+v", got.Email)
	}
	if got.Phone.Value != "111" || got.Phone.Source != SourceParsed {
		t.Fatalf("unexpected phone %+v", got.Phone)
	}
	if got.Address.Value != "Lisbon" || got.Address.Source != SourceAccount {
		t.Fatalf("unexpected address %+v", got.Address)
	}
	if got.Name.Value != "Ada" {
		t.Fatalf("unexpected name %+v", got.Name)
	}
	if got.Bio.Display() != "Gopher" {
		t.Fatalf("unexpected bio %+v", got.Bio)
	}
	if got.Github.Available || got.Github.Display() != NotAvailable {
		t.Fatalf("expected github unavailable, got %+v", got.Github)
	}
	if len(got.Skills) != 1 || got.Skills[0] != "go" {
		t.Fatalf("unexpected skills %v", got.Skills)
	}
	if got.Certifications == nil {
		t.Fatalf("certifications must never be nil")
	}
}

func TestResolveProfileParsedListWinsEvenWhenEmpty(t *testing.T) {
	t.Parallel()

	parsed := &matching.ParsedCV{Skills: []string{}}
	stored := &model.CandidateProfile{ID: "u1", Skills: datatypes.JSONSlice[string]{"go"}}

	got := ResolveProfile(parsed, stored, nil)
	if len(got.Skills) != 0 {
		t.Fatalf("expected parsed empty list to win, got %v", got.Skills)
	}
	got = ResolveProfile(nil, stored, nil)
	if len(got.Skills) != 1 {
		t.Fatalf("expected stored skills without parse, got %v", got.Skills)
	}
}

func TestResolveProfileAllSourcesNil(t *testing.T) {
	t.Parallel()

	got := ResolveProfile(nil, nil, nil)
	for _, f := range got.Fields() {
		if f.Available {
			t.Fatalf("field %s should be unavailable", f.Name)
		}
	}
}

func setAll(parsed *matching.ParsedCV, stored *model.CandidateProfile, account *model.Account, v string) {
	parsed.Name, parsed.Email, parsed.Phone, parsed.Address = opt.Some(v), opt.Some(v), opt.Some(v), opt.Some(v)
	parsed.Github, parsed.Linkedin, parsed.Portfolio = opt.Some(v), opt.Some(v), opt.Some(v)
	stored.Bio, stored.EmailFromCV, stored.PhoneNumber, stored.Address = strPtr(v), strPtr(v), strPtr(v), strPtr(v)
	stored.GithubURL, stored.LinkedinURL, stored.PortfolioURL = strPtr(v), strPtr(v), strPtr(v)
	account.Email, account.Location, account.FirstName, account.LastName = strPtr(v), strPtr(v), strPtr(v), strPtr(v)
}

func findField(p ResolvedProfile, name string) Field {
	for _, f := range p.Fields() {
		if f.Name == name {
			return f
		}
	}
	return Field{}
}
