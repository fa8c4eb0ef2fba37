package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"peloton/internal/app"
	"peloton/internal/config"
	"peloton/internal/db"
	"peloton/internal/domain"
	"peloton/internal/engine"
	"peloton/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "peloton",
	Short: "Peloton stage results CLI",
	Long: `Peloton keeps the results of a multi-stage cycling race.
- Races hold ordered stages; stages hold sprints and categorized climbs.
- A stage is prepared first, then opened for results with 'stage conclude'.
- Results are clock times: start, one per checkpoint, finish.
- Standings give rank, bunch-adjusted times, points and mountain points.
- Portal save/load moves the whole workspace through a YAML snapshot.
- Event log: every change, view with 'peloton log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PELOTON")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := app.LoadEnv(viper.GetString("workspace")); err != nil {
		fmt.Fprintln(os.Stderr, "warning: .env:", err)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().Bool("debug", false, "debug logging")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func registerCommands() {
	rootCmd.AddCommand(raceCmd())
	rootCmd.AddCommand(stageCmd())
	rootCmd.AddCommand(checkpointCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(riderCmd())
	rootCmd.AddCommand(resultCmd())
	rootCmd.AddCommand(standingsCmd())
	rootCmd.AddCommand(portalCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
}

// --- races ---

func raceCmd() *cobra.Command {
	race := &cobra.Command{Use: "race", Short: "Manage races"}
	race.AddCommand(raceCreateCmd())
	race.AddCommand(raceListCmd())
	race.AddCommand(raceShowCmd())
	race.AddCommand(raceRemoveCmd())
	race.AddCommand(raceUseCmd())
	return race
}

func raceCreateCmd() *cobra.Command {
	var name, desc string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a race",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := e.CreateRace(ctx, name, desc)
				if err != nil {
					return err
				}
				race, err := e.GetRace(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(race)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "race name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func raceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List races",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				races, err := e.ListRaces(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(races)
				}
				tw := newTable("ID", "Name", "Stages", "Description")
				for _, r := range races {
					tw.AppendRow(table.Row{r.ID, r.Name, len(r.StageIDs), r.Description})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
}

func raceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a race and its stages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := raceArg(args)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				race, err := e.GetRace(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(race)
				}
				fmt.Printf("Race %d %s (%d stages)\n", race.ID, race.Name, len(race.StageIDs))
				tw := newTable("Stage", "Name", "Type", "Length km", "Start", "State")
				for _, sid := range race.StageIDs {
					st, err := e.GetStage(ctx, sid)
					if err != nil {
						return err
					}
					tw.AppendRow(table.Row{st.ID, st.Name, st.Type, st.Length, st.Start.Format(time.RFC3339), st.State})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
}

func raceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a race with its stages and results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveRace(ctx, id)
			})
		},
	}
}

func raceUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Set current race for this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			workspace := viper.GetString("workspace")
			if err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				_, err := e.GetRace(ctx, id)
				return err
			}); err != nil {
				return err
			}
			if err := app.SetEnvValue(workspace, "PELOTON_RACE", strconv.FormatInt(id, 10)); err != nil {
				return err
			}
			fmt.Printf("Set PELOTON_RACE=%d in %s\n", id, app.EnvPath(workspace))
			return nil
		},
	}
}

// raceArg falls back to the workspace's current race.
func raceArg(args []string) (int64, error) {
	if len(args) > 0 {
		return parseID(args[0])
	}
	if id := viper.GetInt64("race"); id != 0 {
		return id, nil
	}
	return 0, errors.New("race not specified; pass an id or run peloton race use <id>")
}

// --- stages ---

func stageCmd() *cobra.Command {
	stage := &cobra.Command{Use: "stage", Short: "Manage stages"}
	stage.AddCommand(stageAddCmd())
	stage.AddCommand(stageShowCmd())
	stage.AddCommand(stageRemoveCmd())
	stage.AddCommand(stageConcludeCmd())
	return stage
}

func stageAddCmd() *cobra.Command {
	var name, desc, start, typ string
	var raceID int64
	var length float64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a stage to a race",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("race") {
				id, err := raceArg(nil)
				if err != nil {
					return err
				}
				raceID = id
			}
			stageType, err := domain.ParseStageType(typ)
			if err != nil {
				return err
			}
			startAt, err := parseStart(start)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := e.AddStage(ctx, engine.StageOptions{
					RaceID: raceID, Name: name, Description: desc, LengthKm: length, Start: startAt, Type: stageType,
				})
				if err != nil {
					return err
				}
				st, err := e.GetStage(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
	cmd.Flags().Int64Var(&raceID, "race", 0, "race id (defaults to PELOTON_RACE)")
	cmd.Flags().StringVar(&name, "name", "", "stage name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().Float64Var(&length, "length", 0, "length in km")
	cmd.Flags().StringVar(&start, "start", "", "start time (RFC3339 or 'YYYY-MM-DD HH:MM')")
	cmd.Flags().StringVar(&typ, "type", string(domain.StageFlat), "FLAT|MEDIUM_MOUNTAIN|HIGH_MOUNTAIN|TT")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("length")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func stageShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stage and its checkpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.GetStage(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				fmt.Printf("Stage %d %s: %s, %.2f km, start %s, %s, %d results\n",
					st.ID, st.Name, st.Type, st.Length, st.Start.Format(time.RFC3339), st.State, len(st.Results))
				printCheckpoints(st.Checkpoints)
				return nil
			})
		},
	}
}

func stageRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveStage(ctx, id)
			})
		},
	}
}

func stageConcludeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conclude <id>",
		Short: "Conclude preparation and open the stage for results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ConcludeStagePreparation(ctx, id); err != nil {
					return err
				}
				fmt.Printf("stage %d open for results\n", id)
				return nil
			})
		},
	}
}

// --- checkpoints ---

func checkpointCmd() *cobra.Command {
	cp := &cobra.Command{Use: "checkpoint", Short: "Manage sprints and climbs"}
	cp.AddCommand(checkpointClimbCmd())
	cp.AddCommand(checkpointSprintCmd())
	cp.AddCommand(checkpointRemoveCmd())
	cp.AddCommand(checkpointListCmd())
	return cp
}

func checkpointClimbCmd() *cobra.Command {
	var stageID int64
	var location, gradient, length float64
	var category string
	cmd := &cobra.Command{
		Use:   "climb",
		Short: "Add a categorized climb",
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := domain.ParseCheckpointType(category)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := e.AddClimb(ctx, stageID, location, ct, gradient, length)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"id": id, "stage_id": stageID, "type": ct})
			})
		},
	}
	cmd.Flags().Int64Var(&stageID, "stage", 0, "stage id")
	cmd.Flags().Float64Var(&location, "location", 0, "km from the start where the climb ends")
	cmd.Flags().StringVar(&category, "category", "", "C4|C3|C2|C1|HC")
	cmd.Flags().Float64Var(&gradient, "gradient", 0, "average gradient")
	cmd.Flags().Float64Var(&length, "length", 0, "climb length in km")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("location")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func checkpointSprintCmd() *cobra.Command {
	var stageID int64
	var location float64
	cmd := &cobra.Command{
		Use:   "sprint",
		Short: "Add an intermediate sprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := e.AddSprint(ctx, stageID, location)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"id": id, "stage_id": stageID, "type": domain.CheckpointSprint})
			})
		},
	}
	cmd.Flags().Int64Var(&stageID, "stage", 0, "stage id")
	cmd.Flags().Float64Var(&location, "location", 0, "km from the start")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("location")
	return cmd
}

func checkpointRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a checkpoint from a stage in preparation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveCheckpoint(ctx, id)
			})
		},
	}
}

func checkpointListCmd() *cobra.Command {
	var stageID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a stage's checkpoints in location order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.GetStage(ctx, stageID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st.Checkpoints)
				}
				printCheckpoints(st.Checkpoints)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&stageID, "stage", 0, "stage id")
	_ = cmd.MarkFlagRequired("stage")
	return cmd
}

func printCheckpoints(cps []domain.Checkpoint) {
	tw := newTable("ID", "Type", "Location km", "Gradient", "Climb km")
	for _, cp := range cps {
		row := table.Row{cp.ID, cp.Type, cp.Location, "", ""}
		if cp.Climb != nil {
			row[3], row[4] = cp.Climb.AverageGradient, cp.Climb.Length
		}
		tw.AppendRow(row)
	}
	fmt.Println(tw.Render())
}

// --- teams and riders ---

func teamCmd() *cobra.Command {
	team := &cobra.Command{Use: "team", Short: "Manage teams"}
	team.AddCommand(teamCreateCmd())
	team.AddCommand(teamListCmd())
	team.AddCommand(teamRemoveCmd())
	team.AddCommand(teamRidersCmd())
	return team
}

func teamCreateCmd() *cobra.Command {
	var name, desc string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := e.CreateTeam(ctx, name, desc)
				if err != nil {
					return err
				}
				team, err := e.GetTeam(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(team)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "team name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func teamListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				teams, err := e.ListTeams(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(teams)
				}
				tw := newTable("ID", "Name", "Description")
				for _, t := range teams {
					tw.AppendRow(table.Row{t.ID, t.Name, t.Description})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
}

func teamRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a team with its riders and their results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveTeam(ctx, id)
			})
		},
	}
}

func teamRidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "riders <id>",
		Short: "List a team's riders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ids, err := e.TeamRiders(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ids)
				}
				tw := newTable("ID", "Name", "Born")
				for _, rid := range ids {
					rd, err := e.GetRider(ctx, rid)
					if err != nil {
						return err
					}
					tw.AppendRow(table.Row{rd.ID, rd.Name, rd.YearOfBirth})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
}

func riderCmd() *cobra.Command {
	rider := &cobra.Command{Use: "rider", Short: "Manage riders"}
	rider.AddCommand(riderCreateCmd())
	rider.AddCommand(riderRemoveCmd())
	return rider
}

func riderCreateCmd() *cobra.Command {
	var teamID int64
	var name string
	var year int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a rider in a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, err := e.CreateRider(ctx, teamID, name, year)
				if err != nil {
					return err
				}
				rd, err := e.GetRider(ctx, id)
				if err != nil {
					return err
				}
				return printJSONOrTable(rd)
			})
		},
	}
	cmd.Flags().Int64Var(&teamID, "team", 0, "team id")
	cmd.Flags().StringVar(&name, "name", "", "rider name")
	cmd.Flags().IntVar(&year, "year", 0, "year of birth")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func riderRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a rider and their results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveRider(ctx, id)
			})
		},
	}
}

// --- results ---

func resultCmd() *cobra.Command {
	res := &cobra.Command{Use: "result", Short: "Register and inspect rider results"}
	res.AddCommand(resultRegisterCmd())
	res.AddCommand(resultShowCmd())
	res.AddCommand(resultDeleteCmd())
	return res
}

func resultRegisterCmd() *cobra.Command {
	var stageID, riderID int64
	var times []string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register clock times: start, each checkpoint, finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			clocks := make([]time.Time, 0, len(times))
			for _, raw := range times {
				c, err := parseClock(raw)
				if err != nil {
					return err
				}
				clocks = append(clocks, c)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RegisterResult(ctx, stageID, riderID, clocks...); err != nil {
					return err
				}
				res, err := e.RiderResults(ctx, stageID, riderID)
				if err != nil {
					return err
				}
				return printRiderResult(res)
			})
		},
	}
	cmd.Flags().Int64Var(&stageID, "stage", 0, "stage id")
	cmd.Flags().Int64Var(&riderID, "rider", 0, "rider id")
	cmd.Flags().StringSliceVar(&times, "times", nil, "comma separated clock times HH:MM:SS[.fff]")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("rider")
	_ = cmd.MarkFlagRequired("times")
	return cmd
}

func resultShowCmd() *cobra.Command {
	var stageID, riderID int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a rider's checkpoint times and elapsed time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.RiderResults(ctx, stageID, riderID)
				if err != nil {
					return err
				}
				return printRiderResult(res)
			})
		},
	}
	cmd.Flags().Int64Var(&stageID, "stage", 0, "stage id")
	cmd.Flags().Int64Var(&riderID, "rider", 0, "rider id")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("rider")
	return cmd
}

func resultDeleteCmd() *cobra.Command {
	var stageID, riderID int64
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a rider's result in a stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteRiderResults(ctx, stageID, riderID)
			})
		},
	}
	cmd.Flags().Int64Var(&stageID, "stage", 0, "stage id")
	cmd.Flags().Int64Var(&riderID, "rider", 0, "rider id")
	_ = cmd.MarkFlagRequired("stage")
	_ = cmd.MarkFlagRequired("rider")
	return cmd
}

func printRiderResult(res engine.RiderResult) error {
	if viper.GetBool("json") {
		return printJSON(res)
	}
	if !res.Registered {
		fmt.Println("no result")
		return nil
	}
	tw := newTable("Checkpoint", "Clock")
	for i, p := range res.Passages {
		tw.AppendRow(table.Row{i + 1, p.Format("15:04:05.000")})
	}
	tw.AppendFooter(table.Row{"Elapsed", formatDuration(res.Elapsed)})
	fmt.Println(tw.Render())
	return nil
}

// --- standings ---

func standingsCmd() *cobra.Command {
	var stageID int64
	cmd := &cobra.Command{
		Use:   "standings",
		Short: "Stage classification: rank, times and points",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rows, err := e.Classification(ctx, stageID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := newTable("Pos", "Rider", "Elapsed", "Adjusted", "Points", "Mountain")
				for _, r := range rows {
					tw.AppendRow(table.Row{r.Position, riderLabel(ctx, e, r.RiderID), formatDuration(r.Elapsed), formatDuration(r.Adjusted), r.Points, r.MountainPoints})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
	cmd.PersistentFlags().Int64Var(&stageID, "stage", 0, "stage id")
	_ = cmd.MarkPersistentFlagRequired("stage")
	cmd.AddCommand(&cobra.Command{
		Use:   "rank",
		Short: "Rider ids in finishing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ids, err := e.RidersRank(ctx, stageID)
				if err != nil {
					return err
				}
				return printJSON(ids)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "adjusted",
		Short: "Adjusted elapsed times in finishing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				times, err := e.RankedAdjustedElapsedTimes(ctx, stageID)
				if err != nil {
					return err
				}
				out := make([]string, len(times))
				for i, d := range times {
					out[i] = formatDuration(d)
				}
				return printJSON(out)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "points",
		Short: "Stage and sprint points in finishing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				pts, err := e.RidersPoints(ctx, stageID)
				if err != nil {
					return err
				}
				return printJSON(pts)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "mountain",
		Short: "Mountain points in finishing order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				pts, err := e.RidersMountainPoints(ctx, stageID)
				if err != nil {
					return err
				}
				return printJSON(pts)
			})
		},
	})
	return cmd
}

func riderLabel(ctx context.Context, e engine.Engine, id int64) string {
	rd, err := e.GetRider(ctx, id)
	if err != nil {
		return strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%d %s", rd.ID, rd.Name)
}

// --- portal ---

func portalCmd() *cobra.Command {
	portal := &cobra.Command{Use: "portal", Short: "Save, load or erase the whole workspace"}
	portal.AddCommand(&cobra.Command{
		Use:   "save <file>",
		Short: "Write every race, team and result to a YAML snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				doc, err := e.Save(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"id": doc.ID, "version": doc.Version, "races": len(doc.Races), "teams": len(doc.Teams), "results": len(doc.Results)})
			})
		},
	})
	portal.AddCommand(&cobra.Command{
		Use:   "load <file>",
		Short: "Replace the workspace contents with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				doc, err := e.Load(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"id": doc.ID, "version": doc.Version, "races": len(doc.Races), "teams": len(doc.Teams), "results": len(doc.Results)})
			})
		},
	})
	var yes bool
	erase := &cobra.Command{
		Use:   "erase",
		Short: "Remove all races, teams, riders and results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to erase without --yes")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Erase(ctx)
			})
		},
	}
	erase.Flags().BoolVar(&yes, "yes", false, "confirm erase")
	portal.AddCommand(erase)
	return portal
}

// --- config and log ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is peloton.yml in the workspace: naming and length rules plus logging. Missing keys take defaults.",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	})
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default peloton.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite existing file")
	cfg.AddCommand(initCmd)
	return cfg
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every change recorded in the workspace: races, stages, checkpoints, riders, results and portal operations.",
	}
	var n int
	var evtType, entityKind string
	var entityID int64
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				evts, err := e.Repo.LatestEvents(ctx, repo.EventFilters{Type: evtType, EntityKind: entityKind, EntityID: entityID, Limit: n})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				tw := newTable("ID", "TS", "Type", "Entity", "Actor", "Payload")
				for _, ev := range evts {
					tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, fmt.Sprintf("%s %d", ev.EntityKind, ev.EntityID), ev.ActorID, ev.Payload})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	tail.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	tail.Flags().Int64Var(&entityID, "entity-id", 0, "entity id")
	log.AddCommand(tail)
	return log
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	ws, err := app.Open(ctx, app.Options{
		Workspace: viper.GetString("workspace"),
		ActorID:   viper.GetString("actor-id"),
		Debug:     viper.GetBool("debug"),
	})
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws.Engine)
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row(header))
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

var startLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04"}

// parseStart reads a stage start; layouts without a zone use local time.
func parseStart(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid start %q; use RFC3339 or 'YYYY-MM-DD HH:MM'", s)
}

var clockLayouts = []string{"15:04:05.999999999", "15:04:05", "15:04"}

func parseClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid clock time %q; use HH:MM:SS[.fff]", s)
}

// formatDuration renders H:MM:SS.mmm.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms%1000)
}
