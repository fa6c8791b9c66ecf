package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/homework-grader/internal/dto"
)

type responderFunc func(ctx context.Context, message string) (string, error)

func (f responderFunc) Reply(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

type fakeChatConn struct {
	inbound  [][]byte
	outbound []chatFrame
}

func (c *fakeChatConn) ReadMessage() (int, []byte, error) {
	if len(c.inbound) == 0 {
		return 0, nil, io.EOF
	}
	next := c.inbound[0]
	c.inbound = c.inbound[1:]
	return 1, next, nil
}

func (c *fakeChatConn) WriteJSON(v interface{}) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var frame chatFrame
	if err := json.Unmarshal(encoded, &frame); err != nil {
		return err
	}
	c.outbound = append(c.outbound, frame)
	return nil
}

func TestChatAskSanitisesAndForwards(t *testing.T) {
	var received string
	svc := NewChatService(responderFunc(func(_ context.Context, message string) (string, error) {
		received = message
		return "Newton's second law relates force and acceleration.", nil
	}), validator.New(), zerolog.Nop())

	response, err := svc.Ask(context.Background(), 1, dto.ChatRequest{Message: "<b>What is F=ma?</b>"})
	require.NoError(t, err)
	require.Equal(t, "What is F=ma?", received)
	require.Equal(t, "Newton's second law relates force and acceleration.", response.Reply)
}

func TestChatAskForwardsPunctuationVerbatim(t *testing.T) {
	var received string
	svc := NewChatService(responderFunc(func(_ context.Context, message string) (string, error) {
		received = message
		return "yes", nil
	}), validator.New(), zerolog.Nop())

	_, err := svc.Ask(context.Background(), 1, dto.ChatRequest{Message: `Is 3 < 5 & isn't "x" > 2?`})
	require.NoError(t, err)
	require.Equal(t, `Is 3 < 5 & isn't "x" > 2?`, received)
}

func TestChatAskErrors(t *testing.T) {
	svc := NewChatService(responderFunc(func(context.Context, string) (string, error) {
		return "", errors.New("upstream down")
	}), validator.New(), zerolog.Nop())

	_, err := svc.Ask(context.Background(), 1, dto.ChatRequest{})
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)

	_, err = svc.Ask(context.Background(), 1, dto.ChatRequest{Message: "<p></p>"})
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.Ask(context.Background(), 1, dto.ChatRequest{Message: "hello"})
	require.ErrorIs(t, err, ErrChatUnavailable)
}

func TestChatServeConnectionAnswersEachFrame(t *testing.T) {
	svc := NewChatService(responderFunc(func(_ context.Context, message string) (string, error) {
		return "echo: " + message, nil
	}), validator.New(), zerolog.Nop())

	conn := &fakeChatConn{inbound: [][]byte{
		[]byte(`{"message":"first"}`),
		[]byte("plain second"),
		[]byte(`{"message":"<i></i>"}`),
	}}
	svc.ServeConnection(conn, ChatConnectionOptions{StudentID: 3})

	require.Len(t, conn.outbound, 3)
	require.Equal(t, chatFrame{Success: true, Reply: "echo: first"}, conn.outbound[0])
	require.Equal(t, chatFrame{Success: true, Reply: "echo: plain second"}, conn.outbound[1])
	require.False(t, conn.outbound[2].Success)
	require.Equal(t, ErrEmptyMessage.Error(), conn.outbound[2].Message)
}
