package main

import (
	"errors"
	"fmt"

	"bailbond/checkin-service/internal/checkin"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type submitOptions struct {
	position    string
	accuracy    float64
	photo       string
	fingerprint bool
	notes       string
}

func newSubmitCmd(opts *options) *cobra.Command {
	sub := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Record a check-in",
		Long: `Record a check-in at the given position.

A client's first check-in also needs a biometric: pass --photo with a facial
image. Fingerprint credentials need a platform authenticator, which a terminal
does not have.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, opts, sub)
		},
	}
	cmd.Flags().StringVar(&sub.position, "position", "", `Current position as "lat,lon"`)
	cmd.Flags().Float64Var(&sub.accuracy, "accuracy", 10, "Reported accuracy in metres")
	cmd.Flags().StringVar(&sub.photo, "photo", "", "Facial photo (JPEG, PNG or WebP)")
	cmd.Flags().BoolVar(&sub.fingerprint, "fingerprint", false, "Verify with a fingerprint credential")
	cmd.Flags().StringVar(&sub.notes, "notes", "", "Notes for the agency")
	return cmd
}

func runSubmit(cmd *cobra.Command, opts *options, sub *submitOptions) (err error) {
	defer func() {
		if err != nil && opts.logger != nil {
			opts.logger.Debug("submit failed", zap.Error(err))
		}
	}()
	if sub.photo != "" && sub.fingerprint {
		return errors.New("--photo and --fingerprint are mutually exclusive")
	}
	clientID, err := opts.requireClientID()
	if err != nil {
		return err
	}
	client, err := opts.client()
	if err != nil {
		return err
	}

	// Without --position the flow reports the device as lacking geolocation.
	var geo checkin.Geolocator
	if sub.position != "" {
		static, err := parsePosition(sub.position, sub.accuracy)
		if err != nil {
			return err
		}
		geo = static
	}

	out := cmd.OutOrStdout()
	flow, err := checkin.New(checkin.Config{
		ClientID:   clientID,
		Origin:     opts.profile.origin(),
		Backend:    client,
		Geolocator: geo,
		Camera:     fileCamera{path: sub.photo},
		Notifier:   terminalNotifier{out: out},
		Logger:     opts.logger,
	})
	if err != nil {
		return err
	}
	defer flow.Close()

	ctx, cancel := opts.context(cmd)
	defer cancel()

	if err := flow.Mount(ctx); err != nil {
		return err
	}
	if flow.State().IsFirstCheckIn {
		fmt.Fprintln(out, "First check-in: biometric verification required.")
	}

	if err := flow.AcquireLocation(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Location: %s\n", flow.State().Location)

	switch {
	case sub.photo != "":
		if err := flow.StartCamera(ctx); err != nil {
			return err
		}
		if err := flow.CapturePhoto(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Facial photo captured.")
	case sub.fingerprint:
		if err := flow.CaptureFingerprint(ctx); err != nil {
			return err
		}
	}

	if sub.notes != "" {
		if err := flow.SetNotes(sub.notes); err != nil {
			return err
		}
	}
	return flow.Submit(ctx)
}
