package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/driveradar/driveradar/internal/advisor"
	"github.com/driveradar/driveradar/internal/model"
	"github.com/driveradar/driveradar/internal/store"
	"github.com/driveradar/driveradar/internal/timectx"
)

// scorerVersion tags persisted offers with the advisor revision that
// judged them.
const scorerVersion = "v1"

var offerCmd = &cobra.Command{
	Use:   "offer",
	Short: "Score, list, and report on dispatch offers",
}

// -- offer score --

var offerScoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Judge a live dispatch offer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		platform, _ := cmd.Flags().GetString("platform")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		fare, _ := cmd.Flags().GetFloat64("fare")
		eta, _ := cmd.Flags().GetFloat64("eta")
		distance, _ := cmd.Flags().GetFloat64("distance")
		surge, _ := cmd.Flags().GetBool("surge")
		note, _ := cmd.Flags().GetString("note")
		noSave, _ := cmd.Flags().GetBool("no-save")

		p := model.Platform(platform)
		if !p.Valid() {
			return eris.Errorf("offer: invalid platform %q (uber, bolt, freenow)", platform)
		}
		if fare <= 0 {
			return eris.New("offer: --fare must be > 0")
		}

		in := advisor.OfferInput{
			Platform:   p,
			PickupZone: from,
			DestZone:   to,
			Fare:       fare,
			ETAMinutes: eta,
		}
		if cmd.Flags().Changed("distance") {
			in.DistanceKm = &distance
		}

		now := time.Now()
		adv := advisor.New(st, catalog, advisorSettings())
		rec, components := adv.ScoreOffer(ctx, in, now)

		formatRecommendation(os.Stdout, rec)

		if noSave {
			return nil
		}

		offer, err := buildOffer(in, rec, components, surge, note, now)
		if err != nil {
			return err
		}
		if session, err := st.ActiveSession(ctx); err == nil && session != nil {
			offer.SessionID = &session.ID
		}
		if err := st.SaveOffer(ctx, offer); err != nil {
			return eris.Wrap(err, "offer: save")
		}

		fmt.Fprintf(os.Stdout, "\nSaved as offer %d. Report the outcome with: driveradar offer feedback %d\n",
			offer.ID, offer.ID)
		return nil
	},
}

// buildOffer assembles the persisted record for a scored offer.
func buildOffer(in advisor.OfferInput, rec advisor.Recommendation, components advisor.ScoreComponents, surge bool, note string, now time.Time) (*model.Offer, error) {
	raw, err := json.Marshal(components)
	if err != nil {
		return nil, eris.Wrap(err, "offer: marshal components")
	}

	tc := timectx.Resolve(now)
	offer := &model.Offer{
		Platform:             in.Platform,
		PickupZone:           in.PickupZone,
		DestZone:             in.DestZone,
		Fare:                 in.Fare,
		ETAMinutes:           in.ETAMinutes,
		DistanceKm:           in.DistanceKm,
		Surge:                surge,
		Note:                 note,
		CreatedAtMs:          now.UnixMilli(),
		TimeRegime:           string(tc.TimeRegime),
		DayType:              string(tc.DayType),
		RecommendationAction: string(rec.Action()),
		ModelVersion:         scorerVersion,
		ScoreComponents:      string(raw),
	}
	if pick, ok := rec.(advisor.Pick); ok {
		offer.RecommendationConfidence = string(pick.Confidence)
	}
	return offer, nil
}

// formatRecommendation prints a recommendation in its shape's terms.
func formatRecommendation(out io.Writer, rec advisor.Recommendation) {
	switch r := rec.(type) {
	case advisor.Pick:
		fmt.Fprintf(out, "%s (%s)\n", r.Act, r.Confidence)
		for _, reason := range r.Reasons {
			fmt.Fprintf(out, "  - %s\n", reason)
		}
		if r.SuggestedZone != "" {
			fmt.Fprintf(out, "  After dropoff consider: %s (stay %.0f min, leave after %.0f min)\n",
				r.SuggestedZone, r.StayUntilMin, r.LeaveIfMin)
		}
	case advisor.Guide:
		fmt.Fprintf(out, "%s (%s)\n", r.Act, r.Confidence)
		for _, reason := range r.Reasons {
			fmt.Fprintf(out, "  - %s\n", reason)
		}
		if r.SuggestedZone != "" {
			fmt.Fprintf(out, "  Suggested zone: %s\n", r.SuggestedZone)
		}
	case advisor.Collect:
		fmt.Fprintf(out, "COLLECT\n  %s\n", r.Instruction)
	}
}

// -- offer feedback --

var offerFeedbackCmd = &cobra.Command{
	Use:   "feedback <offer-id>",
	Short: "Report whether a recommendation was followed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "offer: invalid id %q", args[0])
		}

		followed, _ := cmd.Flags().GetBool("followed")
		ignored, _ := cmd.Flags().GetBool("ignored")
		if followed == ignored {
			return eris.New("offer: pass exactly one of --followed or --ignored")
		}
		fb := model.FeedbackFollowed
		if ignored {
			fb = model.FeedbackIgnored
		}

		var actualFare, actualDuration *float64
		if cmd.Flags().Changed("actual-fare") {
			v, _ := cmd.Flags().GetFloat64("actual-fare")
			actualFare = &v
		}
		if cmd.Flags().Changed("actual-duration") {
			v, _ := cmd.Flags().GetFloat64("actual-duration")
			actualDuration = &v
		}

		if err := st.RecordFeedback(ctx, id, fb, actualFare, actualDuration); err != nil {
			return eris.Wrap(err, "offer feedback")
		}

		// Actuals with a computable rate feed the rolling per-bucket
		// average for the offer's destination.
		if actualFare != nil && actualDuration != nil && *actualDuration > 0 {
			offer, err := st.GetOffer(ctx, id)
			if err != nil {
				return eris.Wrap(err, "offer feedback")
			}
			if offer.DestZone != "" {
				revPerHour := *actualFare / *actualDuration * 60
				if err := st.UpsertEMA(ctx, offer.Platform, offer.DestZone, offer.DayType, offer.TimeRegime, revPerHour, time.Now().UnixMilli()); err != nil {
					return eris.Wrap(err, "offer feedback: update zone stats")
				}
			}
		}

		fmt.Fprintf(os.Stdout, "Recorded %s for offer %d.\n", fb, id)
		return nil
	},
}

// -- offer list --

var offerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted offers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		platform, _ := cmd.Flags().GetString("platform")
		dest, _ := cmd.Flags().GetString("dest")
		limit, _ := cmd.Flags().GetInt("limit")

		offers, err := st.ListOffers(ctx, store.OfferFilter{
			Platform: model.Platform(platform),
			DestZone: dest,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "offer list")
		}

		if len(offers) == 0 {
			fmt.Fprintln(os.Stderr, "No offers found.")
			return nil
		}

		formatOffersList(os.Stdout, offers)
		return nil
	},
}

// formatOffersList writes a tabular list of offers to w.
func formatOffersList(out io.Writer, offers []model.Offer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPLATFORM\tFROM\tTO\tFARE\tETA\tACTION\tFEEDBACK\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t--------\t----\t--\t----\t---\t------\t--------\t-------")

	for _, o := range offers {
		feedback := ""
		if o.Feedback != nil {
			feedback = string(*o.Feedback)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%.0f\t%s\t%s\t%s\n",
			o.ID,
			o.Platform,
			o.PickupZone,
			o.DestZone,
			o.Fare,
			o.ETAMinutes,
			o.RecommendationAction,
			feedback,
			time.UnixMilli(o.CreatedAtMs).Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func init() {
	offerScoreCmd.Flags().String("platform", "", "offer platform (uber, bolt, freenow)")
	offerScoreCmd.Flags().String("from", "", "pickup zone id")
	offerScoreCmd.Flags().String("to", "", "destination zone id")
	offerScoreCmd.Flags().Float64("fare", 0, "offered fare in PLN")
	offerScoreCmd.Flags().Float64("eta", 0, "estimated trip minutes")
	offerScoreCmd.Flags().Float64("distance", 0, "trip distance in km (estimated from ETA when omitted)")
	offerScoreCmd.Flags().Bool("surge", false, "offer carries a surge multiplier")
	offerScoreCmd.Flags().String("note", "", "free-form note to store with the offer")
	offerScoreCmd.Flags().Bool("no-save", false, "score without persisting the offer")
	_ = offerScoreCmd.MarkFlagRequired("platform")
	_ = offerScoreCmd.MarkFlagRequired("to")
	_ = offerScoreCmd.MarkFlagRequired("fare")

	offerFeedbackCmd.Flags().Bool("followed", false, "the recommendation was followed")
	offerFeedbackCmd.Flags().Bool("ignored", false, "the recommendation was ignored")
	offerFeedbackCmd.Flags().Float64("actual-fare", 0, "fare actually earned")
	offerFeedbackCmd.Flags().Float64("actual-duration", 0, "trip minutes actually driven")

	offerListCmd.Flags().String("platform", "", "filter by platform")
	offerListCmd.Flags().String("dest", "", "filter by destination zone")
	offerListCmd.Flags().Int("limit", 50, "max number of offers to display")

	offerCmd.AddCommand(offerScoreCmd)
	offerCmd.AddCommand(offerFeedbackCmd)
	offerCmd.AddCommand(offerListCmd)
	rootCmd.AddCommand(offerCmd)
}
