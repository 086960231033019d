package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// get command
var getCmd = &cobra.Command{
	Use:   "get TYPE ID",
	Short: "Show an entity, following redirects",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")

		a, err := newApp(cmd.Context(), "Get")
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.Get(cmd.Context(), args[0], args[1], raw)
		if err != nil {
			return err
		}
		return printJSON(view)
	},
}

var revisionCmd = &cobra.Command{
	Use:   "revision TYPE REVISION",
	Short: "Show one revision",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "GetRevision")
		if err != nil {
			return err
		}
		defer a.Close()

		rev, err := a.GetRevision(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(rev)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history TYPE ID",
	Short: "View the accepted edits of an entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "History")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.History(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		for _, e := range entries {
			fmt.Printf("#%-6d  %s  %-8s  %-12s  %s\n",
				e.Seq,
				e.Timestamp.Format("2006-01-02 15:04:05"),
				e.Edit.Kind(),
				e.EditorID,
				e.Description,
			)
		}
		return nil
	},
}

var referrersCmd = &cobra.Command{
	Use:   "referrers KIND ID",
	Short: "List entities pointing at ID (kinds: contrib, ref, file_release)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Referrers")
		if err != nil {
			return err
		}
		defer a.Close()

		refs, err := a.Referrers(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			fmt.Println("No referrers.")
			return nil
		}
		for _, r := range refs {
			fmt.Printf("%s %s  [%d]  %s\n", r.EntityType, r.IdentID, r.Index, r.Role)
		}
		return nil
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup TYPE KEY VALUE",
	Short: "Find an entity by external identifier (doi, orcid, issnl, sha1...)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Lookup")
		if err != nil {
			return err
		}
		defer a.Close()

		ident, err := a.Lookup(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return err
		}
		return printJSON(ident)
	},
}

// changelog command
var changelogCmd = &cobra.Command{
	Use:   "changelog",
	Short: "View accepted edit groups in commit order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetInt64("from")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "Changelog")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Changelog(cmd.Context(), from, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No changelog entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("#%-6d  %s  %s\n", e.Seq, e.Timestamp.Format("2006-01-02 15:04:05"), e.EditGroupID)
		}
		return nil
	},
}

var changelogShowCmd = &cobra.Command{
	Use:   "show SEQ",
	Short: "Show one changelog entry with its edits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid sequence number %q", args[0])
		}

		a, err := newApp(cmd.Context(), "GetChangelogEntry")
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.ChangelogEntry(cmd.Context(), seq)
		if err != nil {
			return err
		}
		return printJSON(entry)
	},
}

// blob command
var blobCmd = &cobra.Command{
	Use:   "blob",
	Short: "Read and write metadata blobs",
}

var blobGetCmd = &cobra.Command{
	Use:   "get HASH",
	Short: "Print a stored blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "GetBlob")
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := a.GetBlob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(os.Stdout, string(data))
		return err
	},
}

var blobPutCmd = &cobra.Command{
	Use:   "put FILE",
	Short: "Store a JSON object and print its hash ('-' for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "PutBlob")
		if err != nil {
			return err
		}
		defer a.Close()

		hash, err := a.PutBlob(cmd.Context(), data)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	getCmd.Flags().Bool("raw", false, "Show the identifier as stored, without following redirects")

	changelogCmd.Flags().Int64("from", 0, "First sequence number to show (default: newest entries)")
	changelogCmd.Flags().IntP("limit", "n", 20, "Maximum number of entries to show")
	changelogCmd.AddCommand(changelogShowCmd)

	blobCmd.AddCommand(blobGetCmd)
	blobCmd.AddCommand(blobPutCmd)

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(revisionCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(referrersCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(changelogCmd)
	rootCmd.AddCommand(blobCmd)
}
