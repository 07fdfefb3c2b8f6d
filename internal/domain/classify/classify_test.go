package classify_test

import (
	"testing"

	"github.com/erichter2018/rvutrack/internal/domain/classify"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEngineClassify(t *testing.T) {
	Convey("Given an engine with a direct lookup and ordered rules", t, func() {
		direct := map[string]classify.Result{
			"CT HEAD WO CONTRAST": {StudyType: "CT Head Direct", RVU: 0.99},
		}
		rules := []classify.Rule{
			{
				StudyType: "CT Head", RVU: 0.85,
				Groups: []classify.ConditionGroup{
					{Required: []string{"ct"}, AnyOf: []string{"head", "brain"}, Excluded: []string{"angio"}},
				},
			},
			{
				StudyType: "CT Anything", RVU: 1.0,
				Groups: []classify.ConditionGroup{
					{Required: []string{"ct"}},
				},
			},
			{
				StudyType: "CT Abdomen Pelvis", RVU: 1.82,
				Groups: []classify.ConditionGroup{
					{Required: []string{"ct"}, AnyOf: []string{"abd", "pelvis"}},
				},
			},
		}
		engine := classify.New(classify.WithRules(direct, rules))

		Convey("When a direct lookup entry matches exactly", func() {
			res := engine.Classify("CT HEAD WO CONTRAST")

			Convey("Then the lookup wins over every rule", func() {
				So(res.StudyType, ShouldEqual, "CT Head Direct")
				So(res.RVU, ShouldEqual, 0.99)
			})
		})

		Convey("When the lookup is consulted", func() {
			Convey("Then matching is case-insensitive", func() {
				res := engine.Classify("ct head wo contrast")
				So(res.StudyType, ShouldEqual, "CT Head Direct")
			})
		})

		Convey("When two rules both match the text", func() {
			// "CT HEAD W CONTRAST" matches both "CT Head" and "CT Anything".
			res := engine.Classify("CT HEAD W CONTRAST")

			Convey("Then the earlier-defined rule wins", func() {
				So(res.StudyType, ShouldEqual, "CT Head")
				So(res.RVU, ShouldEqual, 0.85)
			})
		})

		Convey("When text matches a later rule only through an earlier generic rule", func() {
			// Abd/pel text hits "CT Anything" before "CT Abdomen Pelvis"
			// because definition order is priority order.
			res := engine.Classify("CT ABD PEL W CONTRAST")

			Convey("Then definition order decides", func() {
				So(res.StudyType, ShouldEqual, "CT Anything")
			})
		})

		Convey("When an excluded keyword is present", func() {
			res := engine.Classify("CT ANGIO HEAD")

			Convey("Then the group with the exclusion does not match", func() {
				So(res.StudyType, ShouldEqual, "CT Anything")
			})
		})

		Convey("When no rule matches", func() {
			res := engine.Classify("DEXA BONE DENSITY")

			Convey("Then the Unknown fallback is returned", func() {
				So(res.StudyType, ShouldEqual, classify.UnknownStudyType)
				So(res.RVU, ShouldEqual, 0)
				So(res.Unknown(), ShouldBeTrue)
			})
		})

		Convey("When the same text is classified twice", func() {
			a := engine.Classify("MR BRAIN WO")
			b := engine.Classify("MR BRAIN WO")

			Convey("Then the results are identical", func() {
				So(a, ShouldResemble, b)
			})
		})
	})

	Convey("Given a rule with required, anyOf, and excluded conditions", t, func() {
		engine := classify.New(classify.WithRules(nil, []classify.Rule{
			{
				StudyType: "CT Abdomen Pelvis", RVU: 1.82,
				Groups: []classify.ConditionGroup{
					{Required: []string{"ct"}, AnyOf: []string{"abd", "pelvis"}},
				},
			},
		}))

		Convey("When the text satisfies required and one anyOf keyword", func() {
			res := engine.Classify("CT ABD PEL W CONTRAST")

			Convey("Then the rule matches with its configured values", func() {
				So(res.StudyType, ShouldEqual, "CT Abdomen Pelvis")
				So(res.RVU, ShouldEqual, 1.82)
			})
		})

		Convey("When no anyOf keyword is present", func() {
			res := engine.Classify("CT CHEST W CONTRAST")

			Convey("Then the rule does not match", func() {
				So(res.Unknown(), ShouldBeTrue)
			})
		})
	})

	Convey("Given an engine with no table", t, func() {
		engine := classify.New()

		Convey("When any text is classified", func() {
			Convey("Then it falls back to Unknown", func() {
				So(engine.Classify("CT HEAD").Unknown(), ShouldBeTrue)
			})
		})
	})
}

func TestSwap(t *testing.T) {
	Convey("Given an engine with an initial table", t, func() {
		engine := classify.New(classify.WithRules(nil, []classify.Rule{
			{StudyType: "Old", RVU: 1, Groups: []classify.ConditionGroup{{Required: []string{"ct"}}}},
		}))

		Convey("When the whole table is swapped", func() {
			engine.Swap(classify.NewTable(nil, []classify.Rule{
				{StudyType: "New", RVU: 2, Groups: []classify.ConditionGroup{{Required: []string{"ct"}}}},
			}))

			Convey("Then subsequent classifications use the new table", func() {
				So(engine.Classify("CT HEAD").StudyType, ShouldEqual, "New")
			})
		})

		Convey("When a nil table is swapped in", func() {
			engine.Swap(nil)

			Convey("Then the previous table is kept", func() {
				So(engine.Classify("CT HEAD").StudyType, ShouldEqual, "Old")
			})
		})
	})
}
