package discord

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelName(t *testing.T) {
	t.Run("Should fetch the channel name and cache it", func(t *testing.T) {
		requests := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			assert.Equal(t, "/channels/chan-1", r.URL.Path)
			assert.Equal(t, "Bot test-token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"chan-1","name":"polls"}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "test-token")

		assert.Equal(t, "polls", client.ChannelName("chan-1"))
		assert.Equal(t, "polls", client.ChannelName("chan-1"))
		assert.Equal(t, 1, requests, "Second lookup should hit the cache")
	})

	t.Run("Should fall back to the channel id on API errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "test-token")
		assert.Equal(t, "chan-2", client.ChannelName("chan-2"))
	})
}

func TestDeleteMessage(t *testing.T) {
	t.Run("Should delete the message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/channels/chan-1/messages/msg-1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "test-token")
		assert.NoError(t, client.DeleteMessage("chan-1", "msg-1"))
	})

	t.Run("Should treat an already deleted message as success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "test-token")
		assert.NoError(t, client.DeleteMessage("chan-1", "gone"))
	})

	t.Run("Should report other failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "test-token")
		err := client.DeleteMessage("chan-1", "msg-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "403")
	})
}

func TestClearReactions(t *testing.T) {
	t.Run("Should clear reactions on the message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/channels/chan-1/messages/msg-1/reactions", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "test-token")
		assert.NoError(t, client.ClearReactions("chan-1", "msg-1"))
	})
}

func TestEditMessage(t *testing.T) {
	t.Run("Should report failed edits", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "test-token")
		err := client.EditMessage("chan-1", "msg-1", map[string]string{"content": "updated"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}
