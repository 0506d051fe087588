package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"node.town/listen/speechtotext"
)

var modelsCmd = &cobra.Command{
	Use:   "models [model-id]",
	Short: "List recognition models, or show one",
	Args:  cobra.MaximumNArgs(1),
	Run:   runModels,
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage recognition sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session and print its id and cookie",
	Run:   runSessionCreate,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a session",
	Run:   runSessionDelete,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the recognize status of a session",
	Run:   runSessionStatus,
}

var sessionObserveCmd = &cobra.Command{
	Use:   "observe",
	Short: "Wait for the next result on a session",
	Run:   runSessionObserve,
}

func init() {
	for _, cmd := range []*cobra.Command{sessionDeleteCmd, sessionStatusCmd, sessionObserveCmd} {
		cmd.Flags().String("session-id", "", "Session ID")
		cmd.Flags().String("cookie", "", "Session cookie from `session create`")
		cmd.MarkFlagRequired("session-id")
	}
	sessionObserveCmd.Flags().Bool("interim-results", false, "Return interim results too")

	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionObserveCmd)
}

// signalContext is cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func sessionParams(cmd *cobra.Command) *speechtotext.SessionParams {
	id, _ := cmd.Flags().GetString("session-id")
	cookie, _ := cmd.Flags().GetString("cookie")
	return &speechtotext.SessionParams{SessionID: id, CookieSession: cookie}
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Fatal("encode", "error", err)
	}
}

func runModels(cmd *cobra.Command, args []string) {
	_, client := loadClient()
	ctx, cancel := signalContext()
	defer cancel()

	if len(args) == 1 {
		model, err := client.GetModel(ctx, &speechtotext.GetModelParams{ModelID: args[0]})
		if err != nil {
			logger.Fatal("get model", "error", err)
		}
		printJSON(os.Stdout, model)
		return
	}

	models, err := client.GetModels(ctx)
	if err != nil {
		logger.Fatal("get models", "error", err)
	}

	if len(models.Models) == 0 {
		fmt.Println("No models found.")
		return
	}

	writeModelsTable(os.Stdout, models.Models)
}

func writeModelsTable(w io.Writer, models []speechtotext.Model) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Language", "Rate", "Description"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for _, model := range models {
		table.Append([]string{
			model.Name,
			model.Language,
			strconv.Itoa(model.Rate),
			model.Description,
		})
	}

	table.Render()
}

func runSessionCreate(cmd *cobra.Command, args []string) {
	cfg, client := loadClient()
	ctx, cancel := signalContext()
	defer cancel()

	session, err := client.CreateSession(ctx, &speechtotext.CreateSessionParams{Model: cfg.Model})
	if err != nil {
		logger.Fatal("create session", "error", err)
	}
	printJSON(os.Stdout, session)
}

func runSessionDelete(cmd *cobra.Command, args []string) {
	_, client := loadClient()
	ctx, cancel := signalContext()
	defer cancel()

	if err := client.DeleteSession(ctx, sessionParams(cmd)); err != nil {
		logger.Fatal("delete session", "error", err)
	}
}

func runSessionStatus(cmd *cobra.Command, args []string) {
	_, client := loadClient()
	ctx, cancel := signalContext()
	defer cancel()

	status, err := client.GetRecognizeStatus(ctx, sessionParams(cmd))
	if err != nil {
		logger.Fatal("recognize status", "error", err)
	}
	printJSON(os.Stdout, status)
}

func runSessionObserve(cmd *cobra.Command, args []string) {
	_, client := loadClient()
	ctx, cancel := signalContext()
	defer cancel()

	interim, _ := cmd.Flags().GetBool("interim-results")
	session := sessionParams(cmd)

	result, err := client.ObserveResult(ctx, &speechtotext.ObserveResultParams{
		SessionID:      session.SessionID,
		CookieSession:  session.CookieSession,
		InterimResults: interim,
	})
	if err != nil {
		logger.Fatal("observe result", "error", err)
	}

	var transcript speechtotext.Transcript
	transcript.Add(result)
	speechtotext.PrintTranscript(os.Stdout, &transcript)
}
