package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/apresai/panelcast/internal/assembly"
	"github.com/apresai/panelcast/internal/publish"
)

var (
	flagPublishCode        string
	flagPublishTitle       string
	flagPublishDescription string
	flagPublishDraft       bool
)

var authURLCmd = &cobra.Command{
	Use:   "auth-url",
	Short: "Print the URL that grants panelcast permission to publish",
	Long:  "Open the printed URL, approve access, and pass the code from the redirect to --auth-code. Codes are single-use.",
	RunE:  runAuthURL,
}

var publishCmd = &cobra.Command{
	Use:   "publish <mp3-file>",
	Short: "Upload an existing episode to the podcast host",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

func init() {
	rootCmd.AddCommand(authURLCmd)
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&flagPublishCode, "auth-code", "", "Authorization code from the auth-url redirect (required)")
	publishCmd.Flags().StringVar(&flagPublishTitle, "title", "", "Episode title (default: file name)")
	publishCmd.Flags().StringVar(&flagPublishDescription, "description", "", "Episode description")
	publishCmd.Flags().BoolVar(&flagPublishDraft, "draft", false, "Upload as a draft instead of publishing")
	_ = publishCmd.MarkFlagRequired("auth-code")
}

func runAuthURL(cmd *cobra.Command, args []string) error {
	if err := cfg.PublishReady(); err != nil {
		return err
	}
	a := publish.NewAuthorizer(oauthConfig(cfg))
	fmt.Fprintln(cmd.OutOrStdout(), a.AuthCodeURL(ulid.Make().String()))
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	mp3Path := args[0]
	out := cmd.OutOrStdout()

	if !strings.HasSuffix(strings.ToLower(mp3Path), ".mp3") {
		return fmt.Errorf("file must have .mp3 extension: %s", mp3Path)
	}
	info, err := os.Stat(mp3Path)
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", mp3Path)
	}
	if err := cfg.PublishReady(); err != nil {
		return err
	}

	ctx := cmd.Context()
	fmt.Fprintf(out, "File: %s (%.1f MB)\n", mp3Path, float64(info.Size())/(1024*1024))
	if d := assembly.ProbeDuration(ctx, mp3Path); d != "" {
		fmt.Fprintf(out, "Duration: %s\n", d)
	}

	title := flagPublishTitle
	if title == "" {
		base := filepath.Base(mp3Path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	status := cfg.Publish.Status
	if flagPublishDraft {
		status = "draft"
	}

	session := &publish.Session{}
	if err := session.Authorize(ctx, publish.NewAuthorizer(oauthConfig(cfg)), flagPublishCode); err != nil {
		return err
	}
	fmt.Fprintln(out, "Authorized.")

	res, err := publish.NewPublisher(cfg.Publish.UploadURL).Publish(ctx, session, publish.Episode{
		Path:        mp3Path,
		Title:       title,
		Description: flagPublishDescription,
		Status:      status,
		Explicit:    cfg.Publish.Explicit,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Published %q (status %d)\n", title, res.StatusCode)
	if res.PermalinkURL != "" {
		fmt.Fprintf(out, "URL: %s\n", res.PermalinkURL)
	}
	return nil
}
