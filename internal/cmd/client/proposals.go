package clientcmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// NewProposalCommand builds the `ballot proposal` command group. apiURL
// resolves the server base URL at execution time.
func NewProposalCommand(apiURL func() string) *cobra.Command {
	proposalCmd := &cobra.Command{Use: "proposal", Short: "Proposal operations"}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create (or overwrite) a proposal",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetUint64("key")
			description, _ := cmd.Flags().GetString("description")
			active, _ := cmd.Flags().GetBool("active")
			as, _ := cmd.Flags().GetString("as")
			body := map[string]any{"key": key, "description": description, "isActive": active}
			return postJSON(apiURL()+"/v1/proposals/create", as, body)
		},
	}
	createCmd.Flags().Uint64("key", 0, "Proposal key")
	createCmd.Flags().String("description", "", "Proposal description")
	createCmd.Flags().Bool("active", true, "Open for voting immediately")
	createCmd.Flags().String("as", "", "Principal to act as")
	_ = createCmd.MarkFlagRequired("key")
	_ = createCmd.MarkFlagRequired("as")
	proposalCmd.AddCommand(createCmd)

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch a proposal by key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetUint64("key")
			resp, err := http.Get(fmt.Sprintf("%s/v1/proposals/get?key=%d", apiURL(), key))
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
	getCmd.Flags().Uint64("key", 0, "Proposal key")
	_ = getCmd.MarkFlagRequired("key")
	proposalCmd.AddCommand(getCmd)

	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Number of stored proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(apiURL() + "/v1/proposals/count")
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
	proposalCmd.AddCommand(countCmd)

	editCmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit a proposal you own",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetUint64("key")
			description, _ := cmd.Flags().GetString("description")
			active, _ := cmd.Flags().GetBool("active")
			as, _ := cmd.Flags().GetString("as")
			body := map[string]any{"key": key, "description": description, "isActive": active}
			return postJSON(apiURL()+"/v1/proposals/edit", as, body)
		},
	}
	editCmd.Flags().Uint64("key", 0, "Proposal key")
	editCmd.Flags().String("description", "", "New description")
	editCmd.Flags().Bool("active", true, "Whether voting stays open")
	editCmd.Flags().String("as", "", "Principal to act as")
	_ = editCmd.MarkFlagRequired("key")
	_ = editCmd.MarkFlagRequired("as")
	proposalCmd.AddCommand(editCmd)

	endCmd := &cobra.Command{
		Use:   "end",
		Short: "Close voting on a proposal you own",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetUint64("key")
			as, _ := cmd.Flags().GetString("as")
			return postJSON(apiURL()+"/v1/proposals/end", as, map[string]any{"key": key})
		},
	}
	endCmd.Flags().Uint64("key", 0, "Proposal key")
	endCmd.Flags().String("as", "", "Principal to act as")
	_ = endCmd.MarkFlagRequired("key")
	_ = endCmd.MarkFlagRequired("as")
	proposalCmd.AddCommand(endCmd)

	voteCmd := &cobra.Command{
		Use:   "vote",
		Short: "Cast a vote on an active proposal",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetUint64("key")
			choice, _ := cmd.Flags().GetString("choice")
			as, _ := cmd.Flags().GetString("as")
			return postJSON(apiURL()+"/v1/proposals/vote", as, map[string]any{"key": key, "choice": choice})
		},
	}
	voteCmd.Flags().Uint64("key", 0, "Proposal key")
	voteCmd.Flags().String("choice", "approve", "Vote choice: approve|reject|pass")
	voteCmd.Flags().String("as", "", "Principal to act as")
	_ = voteCmd.MarkFlagRequired("key")
	_ = voteCmd.MarkFlagRequired("as")
	proposalCmd.AddCommand(voteCmd)

	return proposalCmd
}

// principalHeader mirrors the server-side config: BALLOT_PRINCIPAL_HEADER
// overrides the default header name.
func principalHeader() string {
	if v := os.Getenv("BALLOT_PRINCIPAL_HEADER"); v != "" {
		return v
	}
	return "X-Ballot-Principal"
}

func postJSON(url, principal string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if principal != "" {
		req.Header.Set(principalHeader(), principal)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println("status:", resp.Status)
	if len(bytes.TrimSpace(body)) > 0 {
		fmt.Println(string(bytes.TrimSpace(body)))
	}
	return nil
}
