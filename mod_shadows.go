package umbra

// ShadowStats summarizes the last scheduling decision for the debug overlay.
type ShadowStats struct {
	ProjectiveActive int
	PointActive      int
	FacesRendered    int
	Evicted          int
	Inactive         int
}

// ShadowModule installs the full shadow pipeline: scheduler, GPU pool, depth
// renderer and the published bindings. Requires WindowModule, LightModule and
// MeshModule.
type ShadowModule struct{}

func (ShadowModule) Install(app *App) {
	gpu := resource[GpuState](app)
	log := app.Logger()

	pool, err := NewShadowPool(gpu.Device, gpu.Queue, log)
	if err != nil {
		panic(err)
	}
	renderer, err := NewShadowRenderer(gpu.Device, gpu.Queue, log)
	if err != nil {
		pool.Destroy()
		panic(err)
	}

	app.AddResources(NewShadowScheduler(), pool, renderer, NewShadowBindings(), &ShadowStats{})
	app.UseSystem(System(shadowPassSystem).InStage(PreRender))
}

// promoteFullRefresh upgrades a partial-update admission to cover every face
// and restarts the round-robin, keeping the scheduler's rotation in step with
// the forced pass.
func promoteFullRefresh(adm *PointAdmission, sched *ShadowScheduler) {
	adm.Faces = allCubeFaces()
	adm.FullRefresh = true
	sched.ResetFaceRotation(adm.Caster.ID)
}

// shadowPassSystem runs once per frame: snapshot the casters, let the
// scheduler decide, allocate storage, encode the depth passes and publish the
// bindings for the main pass. A light whose storage allocation fails is
// demoted to inactive for the frame instead of aborting it.
func shadowPassSystem(
	gpu *GpuState,
	lights *LightRegistry,
	meshes *MeshRegistry,
	sched *ShadowScheduler,
	pool *ShadowPool,
	renderer *ShadowRenderer,
	bindings *ShadowBindings,
	stats *ShadowStats,
	t *Time,
	log *Log,
) {
	projective, point := CollectShadowCasters(lights, t.FrameIndex)
	plan := sched.Schedule(projective, point)

	if len(plan.Projective) > 0 {
		if err := pool.EnsureArray(len(plan.Projective), plan.ArrayResolution); err != nil {
			log.Errorf("shadow pass: %v", err)
			for _, adm := range plan.Projective {
				plan.Inactive = append(plan.Inactive, adm.Caster.ID)
			}
			plan.Projective = nil
		}
	}

	admitted := plan.Points[:0]
	for _, adm := range plan.Points {
		_, created, err := pool.EnsureCube(adm.Caster.ID, adm.Caster.Resolution)
		if err != nil {
			log.Errorf("shadow pass: light %s: %v", adm.Caster.ID, err)
			plan.Inactive = append(plan.Inactive, adm.Caster.ID)
			continue
		}
		if created && !adm.FullRefresh {
			// The cube was reallocated mid-tenure (resolution change, or a
			// retry after a failed allocation). The new texture holds no
			// depth, so a partial update would leave unrendered faces fully
			// shadowed.
			promoteFullRefresh(&adm, sched)
		}
		admitted = append(admitted, adm)
	}
	plan.Points = admitted

	pool.Release(plan.Evicted)

	encoder, err := gpu.Device.CreateCommandEncoder(nil)
	if err != nil {
		log.Errorf("shadow pass: command encoder: %v", err)
		return
	}
	defer encoder.Release()

	if err := renderer.RenderPlan(encoder, plan, pool, meshes.Drawables(true)); err != nil {
		log.Errorf("shadow pass: %v", err)
		return
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		log.Errorf("shadow pass: encoder finish: %v", err)
		return
	}
	defer cmd.Release()
	gpu.Queue.Submit(cmd)

	bindings.Publish(plan, pool)

	faces := 0
	for _, adm := range plan.Points {
		faces += len(adm.Faces)
		if adm.FullRefresh {
			if l := lights.Get(adm.Caster.ID); l != nil {
				l.UpdateShadowThisFrame = false
			}
		}
	}
	*stats = ShadowStats{
		ProjectiveActive: len(plan.Projective),
		PointActive:      len(plan.Points),
		FacesRendered:    faces,
		Evicted:          len(plan.Evicted),
		Inactive:         len(plan.Inactive),
	}
}
