package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-biokey/biokey/pkg/authn"
	"github.com/go-biokey/biokey/pkg/biokey"
	"github.com/go-biokey/biokey/pkg/biostate"
	"github.com/go-biokey/biokey/pkg/biotypes"
	"github.com/go-biokey/biokey/pkg/lifecycle"
	"github.com/go-biokey/biokey/pkg/options"
)

func main() {
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))

	// A challenger that always approves; a real host wires the platform
	// prompt here.
	challenger := authn.ChallengerFunc(func(_ context.Context, reason string) (authn.AuthOutcome, error) {
		fmt.Printf("challenge: %s -> approved\n", reason)
		return authn.AuthOutcome{Kind: biotypes.AuthOutcomeSuccess}, nil
	})

	sensor := biostate.NewSimulatedSensor(biotypes.BiometryFingerprint)
	sensor.EnrollTemplate([]byte{0x01})

	sink := lifecycle.EventSinkFunc(func(event biotypes.ChangeEvent) {
		fmt.Printf("change event: %s (available=%t enrolled=%t kind=%s)\n",
			event.ChangeType, event.Available, event.Enrolled, event.Kind)
	})

	engine, err := biokey.New(
		options.WithLogger(logger),
		options.WithLevel(lvl),
		options.WithChallenger(challenger),
		options.WithSensor(sensor),
		options.WithEventSink(sink),
		options.WithAppID("com.example.demo"),
	)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()

	if err := engine.ConfigureKeyAlias("com.example.demo.key"); err != nil {
		panic(err)
	}

	created, err := engine.CreateKeys(ctx, "", biotypes.AlgorithmEC256)
	if err != nil {
		panic(err)
	}
	fmt.Printf("public key: %s\n", created.PublicKey)

	signed, err := engine.Sign(ctx, "", "hello biokey")
	if err != nil {
		panic(err)
	}
	fmt.Printf("signature: %s\n", signed.Signature)

	ok, err := engine.Verify("", "hello biokey", signed.Signature)
	if err != nil {
		panic(err)
	}
	fmt.Printf("verified: %t\n", ok)

	report, err := engine.ValidateKeyIntegrity(ctx, "")
	if err != nil {
		panic(err)
	}
	fmt.Printf("integrity: valid=%t exists=%t signatureTest=%t\n",
		report.Valid, report.KeyExists, report.Checks.SignatureTestPassed)

	// Change detection: enroll a second template between lifecycle signals.
	if err := engine.StartChangeDetection(ctx); err != nil {
		panic(err)
	}
	sensor.EnrollTemplate([]byte{0x02})
	engine.OnLifecycleSignal(ctx)

	sensor.SetAvailable(false)
	engine.OnLifecycleSignal(ctx)

	if err := engine.StopChangeDetection(); err != nil {
		panic(err)
	}

	if _, err := engine.DeleteKeys(""); err != nil {
		panic(err)
	}
}
