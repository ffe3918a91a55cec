package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/leonj1/scribe-crush/internal/shared/models"
)

const defaultChunkSize = 256 << 10

type recordingsClient struct{ serverURL *string }

func newRecordingsCmd(serverURL *string) *cobra.Command {
	r := &recordingsClient{serverURL: serverURL}
	cmd := &cobra.Command{Use: "recordings", Aliases: []string{"rec"}, Short: "Manage recordings"}
	cmd.AddCommand(&cobra.Command{Use: "create", Short: "Start a new recording", Args: cobra.NoArgs, RunE: r.create})
	cmd.AddCommand(&cobra.Command{Use: "list", Short: "List recordings, newest first", Args: cobra.NoArgs, RunE: r.list})
	cmd.AddCommand(&cobra.Command{Use: "get <id>", Short: "Show one recording", Args: cobra.ExactArgs(1), RunE: r.get})
	cmd.AddCommand(&cobra.Command{Use: "pause <id>", Short: "Pause a recording", Args: cobra.ExactArgs(1), RunE: r.pause})
	cmd.AddCommand(&cobra.Command{Use: "resume <id>", Short: "Resume a paused recording", Args: cobra.ExactArgs(1), RunE: r.resume})
	cmd.AddCommand(&cobra.Command{Use: "finish <id>", Short: "Assemble and transcribe a recording", Args: cobra.ExactArgs(1), RunE: r.finish})
	cmd.AddCommand(&cobra.Command{Use: "notes <id> <text>", Short: "Replace the notes of a recording", Args: cobra.ExactArgs(2), RunE: r.notes})

	upload := &cobra.Command{
		Use:   "upload <id> <file>",
		Short: "Upload a local audio file as numbered chunks",
		Args:  cobra.ExactArgs(2),
		RunE:  r.upload,
	}
	upload.Flags().Int("chunk-size", defaultChunkSize, "Chunk size in bytes")
	upload.Flags().Int("start-index", 0, "Index of the first chunk")
	cmd.AddCommand(upload)

	transcribe := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Create a recording, upload the file and finish it in one go",
		Args:  cobra.ExactArgs(1),
		RunE:  r.transcribe,
	}
	transcribe.Flags().Int("chunk-size", defaultChunkSize, "Chunk size in bytes")
	cmd.AddCommand(transcribe)
	return cmd
}

func recordingPath(id string, suffix string) string {
	return "/recordings/" + url.PathEscape(id) + suffix
}

func (r *recordingsClient) create(cmd *cobra.Command, args []string) error {
	c, err := authedClient(r.serverURL)
	if err != nil {
		return err
	}
	var rec models.RecordingResponse
	if err := c.do(cmd.Context(), http.MethodPost, "/recordings", nil, "", &rec); err != nil {
		return err
	}
	return printJSON(cmd, rec)
}

func (r *recordingsClient) list(cmd *cobra.Command, args []string) error {
	c, err := authedClient(r.serverURL)
	if err != nil {
		return err
	}
	var recs []models.RecordingResponse
	if err := c.do(cmd.Context(), http.MethodGet, "/recordings", nil, "", &recs); err != nil {
		return err
	}
	return printJSON(cmd, recs)
}

func (r *recordingsClient) get(cmd *cobra.Command, args []string) error {
	c, err := authedClient(r.serverURL)
	if err != nil {
		return err
	}
	var rec models.RecordingResponse
	if err := c.do(cmd.Context(), http.MethodGet, recordingPath(args[0], ""), nil, "", &rec); err != nil {
		return err
	}
	return printJSON(cmd, rec)
}

func (r *recordingsClient) pause(cmd *cobra.Command, args []string) error {
	return r.patchStatus(cmd, args[0], "/pause")
}

func (r *recordingsClient) resume(cmd *cobra.Command, args []string) error {
	return r.patchStatus(cmd, args[0], "/resume")
}

func (r *recordingsClient) patchStatus(cmd *cobra.Command, id, suffix string) error {
	c, err := authedClient(r.serverURL)
	if err != nil {
		return err
	}
	var out models.StatusResponse
	if err := c.do(cmd.Context(), http.MethodPatch, recordingPath(id, suffix), nil, "", &out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recording %s is %s\n", id, out.Status)
	return nil
}

func (r *recordingsClient) finish(cmd *cobra.Command, args []string) error {
	c, err := authedClient(r.serverURL)
	if err != nil {
		return err
	}
	out, err := finishRecording(cmd.Context(), c, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Transcription)
	return nil
}

func (r *recordingsClient) notes(cmd *cobra.Command, args []string) error {
	c, err := authedClient(r.serverURL)
	if err != nil {
		return err
	}
	b, _ := json.Marshal(models.NotesUpdate{Notes: args[1]})
	if err := c.do(cmd.Context(), http.MethodPatch, recordingPath(args[0], "/notes"), bytes.NewReader(b), "application/json", nil); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Notes saved")
	return nil
}

func (r *recordingsClient) upload(cmd *cobra.Command, args []string) error {
	c, err := authedClient(r.serverURL)
	if err != nil {
		return err
	}
	size, _ := cmd.Flags().GetInt("chunk-size")
	start, _ := cmd.Flags().GetInt("start-index")
	n, err := uploadFile(cmd.Context(), c, args[0], args[1], size, start)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d chunks\n", n)
	return nil
}

func (r *recordingsClient) transcribe(cmd *cobra.Command, args []string) error {
	c, err := authedClient(r.serverURL)
	if err != nil {
		return err
	}
	size, _ := cmd.Flags().GetInt("chunk-size")
	var rec models.RecordingResponse
	if err := c.do(cmd.Context(), http.MethodPost, "/recordings", nil, "", &rec); err != nil {
		return err
	}
	if _, err := uploadFile(cmd.Context(), c, rec.ID, args[0], size, 0); err != nil {
		return fmt.Errorf("recording %s: %w", rec.ID, err)
	}
	out, err := finishRecording(cmd.Context(), c, rec.ID)
	if err != nil {
		return fmt.Errorf("recording %s: %w", rec.ID, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Transcription)
	return nil
}

func finishRecording(ctx context.Context, c *apiClient, id string) (models.FinishResponse, error) {
	var out models.FinishResponse
	err := c.do(ctx, http.MethodPost, recordingPath(id, "/finish"), nil, "", &out)
	return out, err
}

// uploadFile splits path into chunkSize pieces numbered from startIndex and
// uploads them in order. It returns how many chunks were sent.
func uploadFile(ctx context.Context, c *apiClient, id, path string, chunkSize, startIndex int) (int, error) {
	if chunkSize <= 0 {
		return 0, errors.New("chunk size must be positive")
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	sent := 0
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			if uerr := uploadChunk(ctx, c, id, startIndex+sent, filepath.Base(path), buf[:n]); uerr != nil {
				return sent, fmt.Errorf("chunk %d: %w", startIndex+sent, uerr)
			}
			sent++
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return sent, err
		}
	}
	if sent == 0 {
		return 0, fmt.Errorf("%s is empty", path)
	}
	return sent, nil
}

func uploadChunk(ctx context.Context, c *apiClient, id string, index int, name string, data []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chunk_index", strconv.Itoa(index)); err != nil {
		return err
	}
	fw, err := mw.CreateFormFile("audio_chunk", name)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	var out models.ChunkUploadResponse
	return c.do(ctx, http.MethodPost, recordingPath(id, "/chunks"), &body, mw.FormDataContentType(), &out)
}
