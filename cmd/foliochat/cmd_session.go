package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/foliochat/internal/controller"
	"github.com/user/foliochat/internal/types"
)

var (
	listAll     bool
	listStarred bool
	listSearch  string
	showPages   int
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionRenameCmd,
		sessionStarCmd, sessionUnstarCmd, sessionDeleteCmd, sessionClearCmd)

	sessionListCmd.Flags().BoolVar(&listAll, "all", false, "load every page")
	sessionListCmd.Flags().BoolVar(&listStarred, "starred", false, "only starred sessions")
	sessionListCmd.Flags().StringVar(&listSearch, "search", "", "filter by name")
	sessionShowCmd.Flags().IntVar(&showPages, "pages", 1, "number of message pages to load")
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage chat sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat sessions, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		if err := s.ctrl.RefreshSessions(ctx); err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		for listAll && s.ctrl.State().SessionsPagination.HasNext {
			if err := s.ctrl.LoadMoreSessions(ctx); err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
		}

		st := s.ctrl.State()
		list := st.Sessions
		switch {
		case listSearch != "":
			list = st.Search(listSearch)
		case listStarred:
			list = st.Starred()
		}
		if listStarred && listSearch != "" {
			list = starredOnly(list)
		}
		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		now := time.Now()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTAR\tTURNS\tUPDATED")
		for _, sess := range list {
			star := ""
			if sess.Starred {
				star = starStyle.Sprint("*")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				sess.ID,
				sess.Name,
				star,
				sess.LatestTurnNumber,
				sess.UpdatedAt.RelativeTime(now),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if p := st.SessionsPagination; p.HasNext && !listAll {
			fmt.Println(mutedStyle.Sprintf("showing %d of %d sessions, use --all for more", len(st.Sessions), p.TotalCount))
		}
		return nil
	},
}

func starredOnly(list []types.Session) []types.Session {
	var out []types.Session
	for _, s := range list {
		if s.Starred {
			out = append(out, s)
		}
	}
	return out
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the messages of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		id := types.SessionID(args[0])
		if err := s.ensureSession(ctx, id); err != nil {
			return err
		}
		if s.ctrl.State().CurrentID() != id {
			if err := s.ctrl.SelectSession(ctx, id); err != nil {
				return fmt.Errorf("session %s: %w", id, err)
			}
		}
		for i := 1; i < showPages && s.ctrl.State().MessagesPagination.HasNext; i++ {
			if err := s.ctrl.LoadOlderMessages(ctx); err != nil {
				return fmt.Errorf("load older messages: %w", err)
			}
		}

		v := s.ctrl.View()
		sess := v.State.Current
		fmt.Println(headerStyle.Sprintf("%s (%s)", sess.Name, sess.ID))
		fmt.Println()
		if len(v.Messages) == 0 {
			fmt.Println("No messages.")
			return nil
		}
		now := time.Now()
		for _, m := range v.Messages {
			printMessage(os.Stdout, m, v.FeedbackEligible[m.ID], now)
		}
		if v.State.MessagesPagination.HasNext {
			fmt.Println(mutedStyle.Sprint("older messages available, use --pages"))
		}
		return nil
	},
}

var sessionRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := types.SessionID(args[0])
		return mutate(cmd.Context(), id, func(ctrl *controller.Controller) error {
			return ctrl.Rename(id, args[1])
		}, fmt.Sprintf("Session %s renamed.", id))
	},
}

var sessionStarCmd = &cobra.Command{
	Use:   "star <id>",
	Short: "Star a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := types.SessionID(args[0])
		return mutate(cmd.Context(), id, func(ctrl *controller.Controller) error {
			return ctrl.SetStarred(id, true)
		}, fmt.Sprintf("Session %s starred.", id))
	},
}

var sessionUnstarCmd = &cobra.Command{
	Use:   "unstar <id>",
	Short: "Unstar a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := types.SessionID(args[0])
		return mutate(cmd.Context(), id, func(ctrl *controller.Controller) error {
			return ctrl.SetStarred(id, false)
		}, fmt.Sprintf("Session %s unstarred.", id))
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := types.SessionID(args[0])
		return mutate(cmd.Context(), id, func(ctrl *controller.Controller) error {
			return ctrl.Delete(id)
		}, fmt.Sprintf("Session %s deleted.", id))
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		if err := s.ctrl.Bootstrap(ctx, controller.BootstrapOptions{NewVisitor: s.newVisitor}); err != nil {
			return err
		}
		if err := s.ctrl.DeleteAll(); err != nil {
			if errors.Is(err, controller.ErrNoUser) {
				fmt.Println("No sessions to clear.")
				return nil
			}
			return err
		}
		if err := s.flush(ctx); err != nil {
			return fmt.Errorf("clear sessions: %w", err)
		}
		fmt.Println("All sessions cleared.")
		return nil
	},
}

// mutate applies one session mutation and waits for the backend to confirm
// it.
func mutate(ctx context.Context, id types.SessionID, fn func(*controller.Controller) error, done string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ensureSession(ctx, id); err != nil {
		return err
	}
	if err := fn(s.ctrl); err != nil {
		return err
	}
	if err := s.flush(ctx); err != nil {
		return err
	}
	fmt.Println(done)
	return nil
}
