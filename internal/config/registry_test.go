package config_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/railvox/internal/config"
	"github.com/MrWong99/railvox/pkg/provider/embeddings"
	embmock "github.com/MrWong99/railvox/pkg/provider/embeddings/mock"
	"github.com/MrWong99/railvox/pkg/provider/stt"
	sttmock "github.com/MrWong99/railvox/pkg/provider/stt/mock"
	"github.com/MrWong99/railvox/pkg/provider/translate"
	trmock "github.com/MrWong99/railvox/pkg/provider/translate/mock"
	"github.com/MrWong99/railvox/pkg/provider/tts"
	ttsmock "github.com/MrWong99/railvox/pkg/provider/tts/mock"
)

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nope"}

	errs := map[string]error{}
	_, errs["embeddings"] = reg.CreateEmbeddings(entry)
	_, errs["stt"] = reg.CreateSTT(entry)
	_, errs["translate"] = reg.CreateTranslate(entry)
	_, errs["tts"] = reg.CreateTTS(entry)

	for kind, err := range errs {
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("%s: err = %v, want ErrProviderNotRegistered", kind, err)
		}
	}
}

func TestRegistry_Create(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	var gotEntry config.ProviderEntry
	reg.RegisterEmbeddings("fake", func(e config.ProviderEntry) (embeddings.Provider, error) {
		gotEntry = e
		return &embmock.Provider{ModelIDValue: e.Model}, nil
	})
	reg.RegisterSTT("fake", func(config.ProviderEntry) (stt.Transcriber, error) { return &sttmock.Transcriber{}, nil })
	reg.RegisterTranslate("fake", func(config.ProviderEntry) (translate.Translator, error) { return &trmock.Translator{}, nil })
	reg.RegisterTTS("fake", func(config.ProviderEntry) (tts.Synthesizer, error) { return &ttsmock.Synthesizer{}, nil })

	entry := config.ProviderEntry{Name: "fake", Model: "m1", APIKey: "k"}
	emb, err := reg.CreateEmbeddings(entry)
	if err != nil {
		t.Fatalf("CreateEmbeddings: %v", err)
	}
	if emb.ModelID() != "m1" || gotEntry.APIKey != "k" {
		t.Errorf("factory got %+v", gotEntry)
	}
	if _, err := reg.CreateSTT(entry); err != nil {
		t.Errorf("CreateSTT: %v", err)
	}
	if _, err := reg.CreateTranslate(entry); err != nil {
		t.Errorf("CreateTranslate: %v", err)
	}
	if _, err := reg.CreateTTS(entry); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}

	for kind, names := range reg.Names() {
		if !slices.Equal(names, []string{"fake"}) {
			t.Errorf("Names()[%s] = %v", kind, names)
		}
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	boom := errors.New("missing api key")
	reg.RegisterTTS("elevenlabs", func(config.ProviderEntry) (tts.Synthesizer, error) { return nil, boom })

	if _, err := reg.CreateTTS(config.ProviderEntry{Name: "elevenlabs"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want factory error", err)
	}
}
