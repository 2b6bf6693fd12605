package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/integrityguard/examsession/internal/config"
	"github.com/integrityguard/examsession/internal/gateway"
	"github.com/integrityguard/examsession/internal/logger"
	"github.com/integrityguard/examsession/internal/model"
	"github.com/integrityguard/examsession/internal/session"
	"github.com/integrityguard/examsession/internal/store"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("exam client failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Dir(cfg.AttemptDBPath), 0o755); err != nil {
		return fmt.Errorf("create attempt dir: %w", err)
	}
	st, err := store.OpenSQLite(ctx, cfg.AttemptDBPath)
	if err != nil {
		return fmt.Errorf("open attempt store: %w", err)
	}
	defer st.Close()

	gw := gateway.NewClient(cfg.GatewayURL, log)
	stdin := bufio.NewScanner(os.Stdin)

	// No persisted attempt means the entry flow runs first.
	if _, err := st.Identity(); errors.Is(err, store.ErrNoAttempt) {
		if err := joinFlow(ctx, stdin, gw, st); err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("read attempt store: %w", err)
	}

	sess, err := session.New(ctx, session.Config{
		Store:        st,
		Gateway:      gw,
		Logger:       log,
		PollInterval: cfg.PollInterval,
	})
	if errors.Is(err, store.ErrNoAttempt) || errors.Is(err, session.ErrNoQuestions) {
		// The attempt no longer resolves; clear it so the next start joins
		// fresh.
		st.Clear()
		return err
	}
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Run(ctx); err != nil {
		return err
	}

	commandLoop(ctx, stdin, sess)

	v := sess.Snapshot()
	switch v.Status {
	case model.SessionStatusFinished:
		fmt.Printf("\nExam complete. Score: %.0f / %d\n", v.Score, v.QuestionCount)
		return sess.Leave()
	case model.SessionStatusTimedOut:
		fmt.Println("\nTime is up. Your recorded answers were kept.")
		return sess.Leave()
	default:
		// Navigated away mid-exam; the attempt stays persisted for resume.
		return nil
	}
}

// joinFlow prompts for an entry code and display name, registers the attempt
// with the gateway, and persists the identity for reloads.
func joinFlow(ctx context.Context, stdin *bufio.Scanner, gw *gateway.Client, st store.AttemptStore) error {
	code := prompt(stdin, "Exam code: ")
	name := prompt(stdin, "Your name: ")
	if code == "" || name == "" {
		return errors.New("exam code and name are required")
	}

	student, err := gw.JoinExam(ctx, code, name)
	if err != nil {
		return fmt.Errorf("join exam: %w", err)
	}
	if err := st.SaveIdentity(&store.Identity{
		StudentID:   student.ID,
		ExamCode:    student.ExamCode,
		StudentName: student.Name,
	}); err != nil {
		return fmt.Errorf("persist attempt: %w", err)
	}
	fmt.Printf("Joined %s as %s.\n", student.ExamCode, student.Name)
	return nil
}

// commandLoop reads one command per line until the session ends or the
// student quits. "blur" and "hide" simulate focus loss for testing the
// penalty flow from a terminal.
func commandLoop(ctx context.Context, stdin *bufio.Scanner, sess *session.Session) {
	for {
		select {
		case <-sess.Done():
			return
		default:
		}

		render(sess)
		fmt.Print("> ")
		if !stdin.Scan() {
			return
		}
		input := strings.TrimSpace(stdin.Text())

		switch strings.ToLower(input) {
		case "":
			continue
		case "quit", "leave":
			return
		case "blur":
			sess.ReportBlurred()
			continue
		case "hide":
			sess.ReportHidden()
			continue
		}

		switch sess.Status() {
		case model.SessionStatusDetained:
			if sess.SolveChallenge(input) {
				fmt.Println("Correct! 30 seconds off your penalty.")
			} else {
				fmt.Println("Not quite. Here comes another one.")
			}
		case model.SessionStatusActive:
			answer(ctx, sess, input)
		default:
			fmt.Println("The exam has not started yet. Hang tight.")
		}
	}
}

// answer maps a letter command to the option at that position and submits.
func answer(ctx context.Context, sess *session.Session, input string) {
	v := sess.Snapshot()
	if v.CurrentQuestion == nil {
		return
	}
	letter := strings.ToUpper(input)
	idx := int(letter[0] - 'A')
	if len(letter) != 1 || idx < 0 || idx >= len(v.CurrentQuestion.Options) {
		fmt.Printf("Pick one of A-%s.\n", model.OptionLetter(len(v.CurrentQuestion.Options)-1))
		return
	}

	err := sess.Submit(ctx, v.CurrentQuestion.Options[idx])
	switch {
	case errors.Is(err, session.ErrSubmitInFlight):
		fmt.Println("Still sending your last answer, one moment.")
	case errors.Is(err, session.ErrNotActive):
		// Status changed between render and submit; the next render shows
		// the new screen.
	case err != nil:
		fmt.Printf("Could not submit: %v\n", err)
	}
}

func render(sess *session.Session) {
	v := sess.Snapshot()
	fmt.Println()

	switch v.Status {
	case model.SessionStatusWaiting:
		fmt.Printf("[%s] Waiting for your teacher to start the exam...\n", v.ExamCode)

	case model.SessionStatusActive:
		remaining, live := sess.TimeRemaining()
		if live {
			fmt.Printf("[%s] Time left: %s\n", v.ExamCode, formatDuration(remaining))
		}
		if v.CurrentQuestion == nil {
			return
		}
		fmt.Printf("Question %d of %d: %s\n", v.CurrentIndex+1, v.QuestionCount, v.CurrentQuestion.Text)
		for i, opt := range v.CurrentQuestion.Options {
			fmt.Printf("  %s) %s\n", model.OptionLetter(i), opt)
		}

	case model.SessionStatusDetained:
		fmt.Printf("!! Eyes on your own exam, %s.\n", v.StudentName)
		fmt.Printf("Detention: %s remaining. Solve to reduce: %s = ?\n",
			formatDuration(sess.DetentionRemaining()), v.ChallengeText)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func prompt(stdin *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !stdin.Scan() {
		return ""
	}
	return strings.TrimSpace(stdin.Text())
}
