package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hitoshi/rpgtable/internal/api"
	"github.com/hitoshi/rpgtable/internal/client"
)

const timeLayout = "2006-01-02 15:04"

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", arg))
	}
	return id, nil
}

func addPageFlags(cmd *cobra.Command, o *client.ListOptions) {
	cmd.Flags().IntVar(&o.Page, "page", 0, "page number (1-based)")
	cmd.Flags().IntVar(&o.Limit, "limit", 0, "items per page (max 100)")
}

func pageFooter(w io.Writer, page, limit, total int) {
	fmt.Fprintf(w, "page %d (limit %d), %d total\n", page, limit, total)
}

// --- rpgs ---

// NewRPGsCommand はrpgsコマンドを生成する。
func NewRPGsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rpgs",
		Short: "Manage campaigns",
	}
	cmd.AddCommand(newRPGsListCommand(opts))
	cmd.AddCommand(newRPGsGetCommand(opts))
	cmd.AddCommand(newRPGsCreateCommand(opts))
	cmd.AddCommand(newRPGsDeleteCommand(opts))
	return cmd
}

func newRPGsListCommand(opts *RootOptions) *cobra.Command {
	var page client.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(cmd, opts); err != nil {
				return err
			}
			list, err := opts.client.RPGs().List(cmd.Context(), page)
			if err != nil {
				return apiError("failed to list campaigns", err)
			}
			f := opts.formatter(cmd)
			return f.Success(list, func(w io.Writer) {
				rows := make([][]string, 0, len(list.Items))
				for _, r := range list.Items {
					rows = append(rows, []string{strconv.FormatInt(r.ID, 10), r.Name, strconv.FormatInt(r.OwnerID, 10), r.UpdatedAt.Format(timeLayout)})
				}
				f.Table(w, []string{"ID", "NAME", "OWNER", "UPDATED"}, rows)
				pageFooter(w, list.Page, list.Limit, list.Total)
			})
		},
	}
	addPageFlags(cmd, &page)
	return cmd
}

func newRPGsGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := requireSession(cmd, opts); err != nil {
				return err
			}
			r, err := opts.client.RPGs().Get(cmd.Context(), id)
			if err != nil {
				return apiError("failed to get campaign", err)
			}
			return opts.formatter(cmd).Success(r, func(w io.Writer) { printRPG(w, r) })
		},
	}
}

func newRPGsCreateCommand(opts *RootOptions) *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign with yourself as game master",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return NewExitError(ExitCommandError, "--name is required")
			}
			if _, err := requireSession(cmd, opts); err != nil {
				return err
			}
			req := api.RPGRequest{Name: &name}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			r, err := opts.client.RPGs().Create(cmd.Context(), req)
			if err != nil {
				return apiError("failed to create campaign", err)
			}
			return opts.formatter(cmd).Success(r, func(w io.Writer) { printRPG(w, r) })
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "campaign name")
	cmd.Flags().StringVar(&description, "description", "", "campaign description")
	return cmd
}

func newRPGsDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := requireSession(cmd, opts); err != nil {
				return err
			}
			if err := opts.client.RPGs().Delete(cmd.Context(), id); err != nil {
				return apiError("failed to delete campaign", err)
			}
			return opts.formatter(cmd).Success(map[string]int64{"deleted": id}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted campaign %d\n", id)
			})
		},
	}
}

func printRPG(w io.Writer, r *api.RPG) {
	fmt.Fprintf(w, "#%d %s\n", r.ID, r.Name)
	fmt.Fprintf(w, "owner: %d\n", r.OwnerID)
	if r.Description != "" {
		fmt.Fprintf(w, "\n%s\n", r.Description)
	}
}

// --- characters ---

// NewCharactersCommand はcharactersコマンドを生成する。
func NewCharactersCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "characters",
		Short: "Manage characters",
	}
	cmd.AddCommand(newCharactersListCommand(opts))
	cmd.AddCommand(newCharactersCreateCommand(opts))
	return cmd
}

func newCharactersListCommand(opts *RootOptions) *cobra.Command {
	var q client.CharacterQuery
	var mine bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List characters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := requireSession(cmd, opts)
			if err != nil {
				return err
			}
			if mine {
				q.UserID = state.Identity.ID
			}
			list, err := opts.client.Characters().List(cmd.Context(), q)
			if err != nil {
				return apiError("failed to list characters", err)
			}
			f := opts.formatter(cmd)
			return f.Success(list, func(w io.Writer) {
				rows := make([][]string, 0, len(list.Items))
				for _, c := range list.Items {
					rows = append(rows, []string{
						strconv.FormatInt(c.ID, 10), c.Name, c.Class, strconv.Itoa(c.Level),
						strconv.FormatInt(c.RPGID, 10), strconv.FormatInt(c.UserID, 10),
					})
				}
				f.Table(w, []string{"ID", "NAME", "CLASS", "LEVEL", "RPG", "PLAYER"}, rows)
				pageFooter(w, list.Page, list.Limit, list.Total)
			})
		},
	}
	cmd.Flags().Int64Var(&q.RPGID, "rpg", 0, "filter by campaign id")
	cmd.Flags().Int64Var(&q.UserID, "user", 0, "filter by player id")
	cmd.Flags().BoolVar(&mine, "mine", false, "only characters you play")
	addPageFlags(cmd, &q.ListOptions)
	return cmd
}

func newCharactersCreateCommand(opts *RootOptions) *cobra.Command {
	var (
		rpgID                    int64
		name, class, description string
		level                    int
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a character in a campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rpgID <= 0 || name == "" {
				return NewExitError(ExitCommandError, "--rpg and --name are required")
			}
			if _, err := requireSession(cmd, opts); err != nil {
				return err
			}
			req := api.CharacterRequest{RPGID: rpgID, Name: &name}
			if class != "" {
				req.Class = &class
			}
			if cmd.Flags().Changed("level") {
				req.Level = &level
			}
			if description != "" {
				req.Description = &description
			}
			c, err := opts.client.Characters().Create(cmd.Context(), req)
			if err != nil {
				return apiError("failed to create character", err)
			}
			return opts.formatter(cmd).Success(c, func(w io.Writer) {
				fmt.Fprintf(w, "#%d %s (%s, level %d) in campaign %d\n", c.ID, c.Name, c.Class, c.Level, c.RPGID)
			})
		},
	}
	cmd.Flags().Int64Var(&rpgID, "rpg", 0, "campaign id")
	cmd.Flags().StringVar(&name, "name", "", "character name")
	cmd.Flags().StringVar(&class, "class", "", "character class")
	cmd.Flags().IntVar(&level, "level", 1, "character level (1-100)")
	cmd.Flags().StringVar(&description, "description", "", "character description")
	return cmd
}

// --- events ---

// NewEventsCommand はeventsコマンドを生成する。
func NewEventsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Browse character events",
	}
	cmd.AddCommand(newEventsListCommand(opts))
	return cmd
}

func newEventsListCommand(opts *RootOptions) *cobra.Command {
	var characterID int64
	var page client.ListOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events of a character",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if characterID <= 0 {
				return NewExitError(ExitCommandError, "--character is required")
			}
			if _, err := requireSession(cmd, opts); err != nil {
				return err
			}
			list, err := opts.client.Events().List(cmd.Context(), characterID, page)
			if err != nil {
				return apiError("failed to list events", err)
			}
			types, err := opts.client.EventTypes().List(cmd.Context())
			if err != nil {
				return apiError("failed to list event types", err)
			}
			typeNames := make(map[int64]string, len(types.Items))
			for _, et := range types.Items {
				typeNames[et.ID] = et.Name
			}

			f := opts.formatter(cmd)
			return f.Success(list, func(w io.Writer) {
				rows := make([][]string, 0, len(list.Items))
				for _, e := range list.Items {
					typeName := typeNames[e.EventTypeID]
					if typeName == "" {
						typeName = strconv.FormatInt(e.EventTypeID, 10)
					}
					rows = append(rows, []string{strconv.FormatInt(e.ID, 10), e.OccurredAt.Format(timeLayout), typeName, e.Title})
				}
				f.Table(w, []string{"ID", "OCCURRED", "TYPE", "TITLE"}, rows)
				pageFooter(w, list.Page, list.Limit, list.Total)
			})
		},
	}
	cmd.Flags().Int64Var(&characterID, "character", 0, "character id")
	addPageFlags(cmd, &page)
	return cmd
}
