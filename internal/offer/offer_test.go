package offer

import (
	"strings"
	"sync"
	"testing"

	"github.com/jupiterlabs/reengage/internal/classify"
)

func sampleOffer() Offer {
	return Offer{
		Title:       "Limited Time Offer",
		Message:     "Complete your application in 24 hours for a voucher.",
		UrgencyText: "Expires soon!",
		CTA:         "Complete your application now.",
		Link:        "https://example.test/apply",
		MaxShows:    1,
	}
}

func TestStateSwap(t *testing.T) {
	s := NewState(sampleOffer())
	if got := s.Active(); got.Title != "Limited Time Offer" {
		t.Fatalf("Active() = %+v", got)
	}

	replacement := sampleOffer()
	replacement.Title = "Weekend Special"
	s.Set(replacement)
	if got := s.Active(); got.Title != "Weekend Special" {
		t.Fatalf("Active() after Set = %+v", got)
	}
}

// Readers racing a writer must always observe one of the two complete
// offers, never a mix.
func TestStateNoTornReads(t *testing.T) {
	a := Offer{Title: "A", Message: "A", UrgencyText: "A", CTA: "A"}
	b := Offer{Title: "B", Message: "B", UrgencyText: "B", CTA: "B"}
	s := NewState(a)

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				s.Set(a)
			} else {
				s.Set(b)
			}
		}
	}()

	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 1000; i++ {
				got := s.Active()
				if got.Title != got.Message || got.Title != got.CTA {
					t.Errorf("torn read: %+v", got)
					return
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	<-writerDone
}

func TestRender(t *testing.T) {
	o := sampleOffer()

	t.Run("english has no language note", func(t *testing.T) {
		out := o.Render(classify.LangEnglish)
		if strings.Contains(out, "Hindi mein") {
			t.Errorf("english render carries Hindi note:\n%s", out)
		}
		for _, part := range []string{o.Title, o.Message, o.UrgencyText, o.CTA, o.Link} {
			if !strings.Contains(out, part) {
				t.Errorf("render missing %q:\n%s", part, out)
			}
		}
	})

	t.Run("hinglish gets language note", func(t *testing.T) {
		out := o.Render(classify.LangHinglish)
		if !strings.HasPrefix(out, "(Aap Hindi mein bhi baat kar sakte hain)") {
			t.Errorf("hinglish render missing language note:\n%s", out)
		}
	})

	t.Run("no link line when link empty", func(t *testing.T) {
		o := sampleOffer()
		o.Link = ""
		if strings.Contains(o.Render(classify.LangEnglish), "Continue here") {
			t.Error("render shows link line without a link")
		}
	})
}
