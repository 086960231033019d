package main

import (
	"fmt"

	"catalog-go/internal/app"

	"github.com/spf13/cobra"
)

// editgroup command
var editgroupCmd = &cobra.Command{
	Use:   "editgroup",
	Short: "Stage and commit batches of edits",
}

var editgroupOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a new edit group",
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, _ := cmd.Flags().GetString("editor")
		description, _ := cmd.Flags().GetString("description")
		extraPath, _ := cmd.Flags().GetString("extra")

		extra, err := readInput(extraPath)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "OpenGroup")
		if err != nil {
			return err
		}
		defer a.Close()

		g, err := a.OpenGroup(cmd.Context(), editor, description, extra)
		if err != nil {
			return err
		}
		fmt.Println(g.ID)
		return nil
	},
}

var editgroupStageCmd = &cobra.Command{
	Use:   "stage GROUP TYPE [ID]",
	Short: "Stage an edit; omit ID to create a new entity",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		contentPath, _ := cmd.Flags().GetString("content")
		contentExtraPath, _ := cmd.Flags().GetString("content-extra")
		extraPath, _ := cmd.Flags().GetString("extra")
		redirect, _ := cmd.Flags().GetString("redirect")
		del, _ := cmd.Flags().GetBool("delete")

		in := app.EditInput{RedirectTo: redirect, Delete: del}
		var err error
		if in.Content, err = readInput(contentPath); err != nil {
			return err
		}
		if in.ContentExtra, err = readInput(contentExtraPath); err != nil {
			return err
		}
		if in.Extra, err = readInput(extraPath); err != nil {
			return err
		}

		var targetID string
		if len(args) == 3 {
			targetID = args[2]
		}

		a, err := newApp(cmd.Context(), "StageEdit")
		if err != nil {
			return err
		}
		defer a.Close()

		edit, err := a.StageEdit(cmd.Context(), args[0], args[1], targetID, in)
		if err != nil {
			return err
		}
		fmt.Printf("Staged %s of %s %s (edit %s)\n", edit.Kind(), edit.EntityType, edit.IdentID, edit.ID)
		return nil
	},
}

var editgroupAcceptCmd = &cobra.Command{
	Use:   "accept GROUP",
	Short: "Commit an edit group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "AcceptGroup")
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.AcceptGroup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Accepted edit group %s as changelog entry #%d\n", entry.EditGroupID, entry.Seq)
		return nil
	},
}

var editgroupAbandonCmd = &cobra.Command{
	Use:   "abandon GROUP",
	Short: "Discard an open edit group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "AbandonGroup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.AbandonGroup(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Abandoned edit group %s\n", args[0])
		return nil
	},
}

var editgroupShowCmd = &cobra.Command{
	Use:   "show GROUP",
	Short: "Show an edit group and its edits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "GetEditGroup")
		if err != nil {
			return err
		}
		defer a.Close()

		g, err := a.GetEditGroup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(g)
	},
}

// merge command
var mergeCmd = &cobra.Command{
	Use:   "merge TYPE SOURCE TARGET",
	Short: "Redirect SOURCE to TARGET",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, _ := cmd.Flags().GetString("editor")

		a, err := newApp(cmd.Context(), "Merge")
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := a.Merge(cmd.Context(), editor, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Merged %s %s into %s as changelog entry #%d\n", args[0], args[1], args[2], entry.Seq)
		return nil
	},
}

func init() {
	editgroupCmd.AddCommand(editgroupOpenCmd)
	editgroupOpenCmd.Flags().String("editor", "", "Editor submitting the group")
	editgroupOpenCmd.Flags().StringP("description", "m", "", "Description of the change")
	editgroupOpenCmd.Flags().String("extra", "", "JSON file of group metadata ('-' for stdin)")
	editgroupOpenCmd.MarkFlagRequired("editor")

	editgroupCmd.AddCommand(editgroupStageCmd)
	editgroupStageCmd.Flags().StringP("content", "c", "", "JSON file of the new revision ('-' for stdin)")
	editgroupStageCmd.Flags().String("content-extra", "", "JSON file of revision extension metadata")
	editgroupStageCmd.Flags().String("extra", "", "JSON file of edit metadata")
	editgroupStageCmd.Flags().String("redirect", "", "Redirect the entity to this identifier")
	editgroupStageCmd.Flags().Bool("delete", false, "Delete the entity")
	editgroupStageCmd.MarkFlagsMutuallyExclusive("content", "redirect", "delete")

	editgroupCmd.AddCommand(editgroupAcceptCmd)
	editgroupCmd.AddCommand(editgroupAbandonCmd)
	editgroupCmd.AddCommand(editgroupShowCmd)

	mergeCmd.Flags().String("editor", "", "Editor submitting the merge")
	mergeCmd.MarkFlagRequired("editor")

	rootCmd.AddCommand(editgroupCmd)
	rootCmd.AddCommand(mergeCmd)
}
