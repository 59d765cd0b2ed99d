package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hanseplat/userhub/internal/profile"
	"github.com/hanseplat/userhub/internal/result"
)

const remoteService = "profile-sync"

// RemoteProfileStore speaks the profile API of a central instance. It is
// the repository variant used when a deployment mirrors profiles to a
// remote service instead of (or in addition to) local SQLite.
type RemoteProfileStore struct {
	client  *Client
	baseURL string
}

// NewRemoteProfileStore targets the instance at baseURL.
func NewRemoteProfileStore(client *Client, baseURL string) *RemoteProfileStore {
	return &RemoteProfileStore{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (r *RemoteProfileStore) url(uid string) string {
	return fmt.Sprintf("%s/api/user-profiles/%s", r.baseURL, uid)
}

// Get fetches one profile from the remote instance.
func (r *RemoteProfileStore) Get(ctx context.Context, uid string) (*profile.Profile, error) {
	status, body, err := r.client.Do(ctx, remoteService, http.MethodGet, r.url(uid), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status < 200 || status >= 300 {
		return nil, result.Errf(result.KindTransient, fmt.Sprintf("remote profile get: status %d", status))
	}

	var env result.Result[*profile.Profile]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding remote profile: %w", err)
	}
	if !env.Success {
		return nil, mapEnvelopeError(env.Kind, env.Error)
	}
	return env.Data, nil
}

// Save pushes one profile to the remote instance.
func (r *RemoteProfileStore) Save(ctx context.Context, p *profile.Profile) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile %s: %w", p.UID, err)
	}

	status, body, err := r.client.Do(ctx, remoteService, http.MethodPost, r.url(p.UID), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return result.Errf(result.KindTransient, fmt.Sprintf("remote profile save: status %d", status))
	}

	var env result.Result[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decoding remote save response: %w", err)
	}
	if !env.Success {
		return mapEnvelopeError(env.Kind, env.Error)
	}
	return nil
}

// Delete removes one profile from the remote instance. A missing remote
// profile is not an error.
func (r *RemoteProfileStore) Delete(ctx context.Context, uid string) error {
	status, _, err := r.client.Do(ctx, remoteService, http.MethodDelete, r.url(uid), nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return nil
	}
	if status < 200 || status >= 300 {
		return result.Errf(result.KindTransient, fmt.Sprintf("remote profile delete: status %d", status))
	}
	return nil
}

func mapEnvelopeError(kind result.Kind, msg string) error {
	if kind == "" {
		kind = result.KindTransient
	}
	if msg == "" {
		msg = "remote call failed"
	}
	return result.Errf(kind, msg)
}
