package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/foliochat/internal/chat"
	"github.com/user/foliochat/internal/controller"
	"github.com/user/foliochat/internal/types"
)

var chatSessionID string

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatSessionID, "session", "s", "", "continue an existing session")
}

var chatCmd = &cobra.Command{
	Use:   "chat [--session id] <message...>",
	Short: "Send a message and stream the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if chatSessionID == "" {
			s.ctrl.NewChat()
		} else {
			id := types.SessionID(chatSessionID)
			if err := s.ctrl.Bootstrap(ctx, controller.BootstrapOptions{SessionID: id}); err != nil {
				return err
			}
			st := s.ctrl.State()
			if st.SessionNotFound {
				return fmt.Errorf("session %s: %w", id, types.ErrNotFound)
			}
			if st.CurrentID() != id {
				return fmt.Errorf("session %s could not be loaded", id)
			}
		}

		printer := newStreamPrinter(os.Stdout, s.ctrl.View().Messages)
		unsubscribe := s.ctrl.Subscribe(printer.update)
		defer unsubscribe()

		if _, err := s.ctrl.Send(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
		waitErr := s.ctrl.Wait(ctx)
		if waitErr != nil {
			s.ctrl.Stop()
		}
		printer.update(s.ctrl.View())
		printer.finish()

		v := s.ctrl.View()
		if v.Status == chat.StatusError {
			return errors.New(v.Err)
		}
		if id := v.State.CurrentID(); id != "" && !id.IsTemporary() {
			fmt.Println(mutedStyle.Sprintf("session %s", id))
		}
		return waitErr
	},
}
